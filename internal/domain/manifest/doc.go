/*
Package manifest validates component descriptors.

Extensions ship a manifest.json with name, componentName, version, author,
description and main. Nodes use a relaxed descriptor keyed by component
where main may be omitted and is inferred from the directory.

Validation happens in two layers. Parse and ParseNode reject non UTF-8
input and wrongly typed values using an embedded JSON schema, then run the
pure Validate or ValidateNode checks which name the first missing field.

Example Usage:

	d, err := manifest.Parse(raw)
	if errors.Is(err, types.ErrInvalidManifest) {
		// report err to the uploader
	}

	m := manifest.FromDescriptor(*d)
	main, err := manifest.ResolveMain(dir, m)
*/
package manifest
