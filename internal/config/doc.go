// Package config resolves the pipeline settings shared by the generate and
// pack commands. Settings come from three layers, lowest precedence first:
// built-in defaults, an optional HCL pipeline file and TOWNPACK_*
// environment variables. Command-line flags are applied on top by the cli
// package.
//
// A pipeline file looks like:
//
//	root       = "assets/towns"
//	defaults   = "scalingDefaults.json"
//	categories = ["houses", "trees", "props", "cars"]
//
//	scale {
//	  policy        = "humanoid-clamped"
//	  target_height = 3
//	}
//
//	layout {
//	  kind    = "grid"
//	  columns = 8
//	}
//
//	output {
//	  packed = "${town}.glb"
//	}
//
// The variable town holds the town being processed.
package config
