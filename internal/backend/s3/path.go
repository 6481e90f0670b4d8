// Package s3 syncs local directories with S3 prefixes, skipping files
// whose SHA-256 checksum already matches the remote copy.
package s3

import (
	"fmt"
	"strings"
)

// Path identifies an object or prefix in a bucket. Components never
// contain slashes and never are empty, so a Path always round-trips
// cleanly through its Key.
type Path struct {
	Bucket     string
	Components []string
}

// NewPath splits key on "/" and validates the result.
func NewPath(bucket, key string) (Path, error) {
	if bucket == "" {
		return Path{}, fmt.Errorf("bucket must not be empty")
	}
	if strings.HasSuffix(key, "/") {
		return Path{}, fmt.Errorf("key %q must not end in /", key)
	}
	components := strings.Split(key, "/")
	for _, c := range components {
		if c == "" {
			return Path{}, fmt.Errorf("key %q has an empty component", key)
		}
	}
	return Path{Bucket: bucket, Components: components}, nil
}

// Key joins the components back into an object key.
func (p Path) Key() string {
	return strings.Join(p.Components, "/")
}

// Child returns the path one level below p.
func (p Path) Child(name string) (Path, error) {
	if name == "" || strings.Contains(name, "/") {
		return Path{}, fmt.Errorf("invalid path component %q", name)
	}
	components := make([]string, 0, len(p.Components)+1)
	components = append(components, p.Components...)
	components = append(components, name)
	return Path{Bucket: p.Bucket, Components: components}, nil
}

func (p Path) String() string {
	return "s3://" + p.Bucket + "/" + p.Key()
}

// Source labels which pipeline produced a stored dataset. Raw feature
// uploads are partitioned by source under a shared prefix.
type Source string

const (
	SourceCole      Source = "cole"
	SourceTest      Source = "test"
	SourceDatabento Source = "databento"
)

// Valid reports whether s is a known partition.
func (s Source) Valid() bool {
	switch s {
	case SourceCole, SourceTest, SourceDatabento:
		return true
	}
	return false
}

// FeaturesRawPrefix is the key prefix for raw feature uploads.
const FeaturesRawPrefix = "features_raw"

// PartitionPath builds the upload prefix for a data source, e.g.
// features_raw/cole/SPY-23JUL21.
func PartitionPath(bucket string, source Source, parts ...string) (Path, error) {
	if !source.Valid() {
		return Path{}, fmt.Errorf("unknown data source %q", source)
	}
	key := FeaturesRawPrefix + "/" + string(source)
	for _, part := range parts {
		key += "/" + part
	}
	return NewPath(bucket, key)
}
