/*
Package catalogclient is the HTTP client for a catalog server.

One Client addresses one kind (extensions or nodes). Reads are retried on
connection errors and 5xx responses through go-retryablehttp; uploads, status
changes, deletes and rescans are sent once. Server errors come back as *Error,
which unwraps to types.ErrNotFound, types.ErrAlreadyExists or
types.ErrFileTooLarge where the status code allows.

Client implements loader.MetadataSource, so a browser-hosted loader can be
pointed straight at a running server:

	c := catalogclient.New(catalogclient.Options{BaseURL: "http://localhost:8000"})
	l, _ := loader.New(loader.Options{
		Host:     loader.Browser,
		BaseURL:  "http://localhost:8000",
		Metadata: c,
		Fetcher:  loader.NewHTTPFetcher("http://localhost:8000"),
	})
*/
package catalogclient
