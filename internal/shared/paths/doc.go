// Package paths provides standardized filesystem locations for installed components.
//
// # Directory Structure
//
//	<data dir>/<app>/
//	  ├── extensions/
//	  │   ├── .status.json       (enabled/disabled overlay)
//	  │   └── <id>/
//	  │       ├── manifest.json
//	  │       ├── .install.json  (digest, source file)
//	  │       └── <main file> + assets
//	  └── nodes/                 (same layout)
//
// # Usage
//
//	root := paths.ExtensionsDir("nodegraph")
//	full, err := paths.Within(filepath.Join(root, id), "dist/index.js")
package paths
