package config

import "regexp"

const (
	DefaultTagName = "default"
	DotEnvFile     = ".env"
	DotEnvKVParts  = 2
	ListSeparator  = ","
)

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)
