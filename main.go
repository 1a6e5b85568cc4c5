// Copyright 2025 The GeoSuggest Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/jcodagnone/geosuggest/cmd"
)

var Version = "development"

func main() {
	cmd.Execute(Version)
}
