/*
Package catalog keeps the server-side catalog of installed components.

A Service owns one install root. Each rescan lists the immediate
subdirectories, turns each into exactly one CatalogEntry (broken
directories become entries with status "error" instead of being dropped)
and publishes the result as an immutable Snapshot. Readers load the
current snapshot without locking; scans and status changes are serialized.

Enabled and disabled choices are persisted in .status.json under the root
and survive restarts and rescans.

Example Usage:

	svc := catalog.New(catalog.Options{
		Root:    paths.ExtensionsDir("nodegraph"),
		Kind:    types.KindExtension,
		BaseURL: "http://localhost:8000",
		Watch:   true,
	})
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Install(ctx, archive, "foo.zip")
	err = svc.SetStatus(res.ExtensionID, types.StatusEnabled)
*/
package catalog
