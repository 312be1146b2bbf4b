package cmd

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Static errors for configuration validation
var (
	ErrInputRequired          = errors.New("at least one input pattern is required")
	ErrNeedsOutput            = errors.New("must provide an output file or --stdout")
	ErrOutputAndStdout        = errors.New("must provide an output file or --stdout, but not both")
	ErrNoInputsMatched        = errors.New("no archives matched the input pattern(s)")
	ErrFilterPatternInvalid   = errors.New("entry filter pattern is invalid")
	ErrInputPatternInvalid    = errors.New("input pattern is invalid")
	ErrRowGroupSizeMinimum    = errors.New("row group size must be at least 1")
	ErrRowGroupSizeMaximum    = errors.New("row group size must not exceed 10000000")
	ErrWorkersMinimum         = errors.New("workers must be at least 1")
	ErrWorkersMaximum         = errors.New("workers must not exceed 1000")
	ErrCompressionInvalid     = errors.New("compression must be one of: snappy, zstd, gzip, lz4, none")
	ErrS3EndpointRequired     = errors.New("S3 endpoint is required for s3:// output")
	ErrS3AccessKeyRequired    = errors.New("S3 access key is required for s3:// output")
	ErrS3SecretKeyRequired    = errors.New("S3 secret key is required for s3:// output")
	ErrS3OutputInvalid        = errors.New("s3:// output must have the form s3://bucket/key")
)

type Config struct {
	Debug     bool
	LogFormat string

	Inputs []string // glob patterns, expanded to concrete archive paths
	Output string   // local path or s3://bucket/key
	Stdout bool

	Filter   string // optional glob matched against in-archive entry names
	NoBody   bool
	NoSource bool
	NoHash   bool

	RowGroupSize int // batch size and relay capacity
	Workers      int
	Compression  string

	S3 S3Config
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
}

// isValidCompression validates the parquet compression codec name
func isValidCompression(compression string) bool {
	validCompressions := map[string]bool{
		"snappy": true,
		"zstd":   true,
		"gzip":   true,
		"lz4":    true,
		"none":   true,
	}
	return validCompressions[compression]
}

// IsS3Output reports whether the configured output is an S3 object
func (c *Config) IsS3Output() bool {
	return strings.HasPrefix(c.Output, "s3://")
}

// S3Location splits an s3://bucket/key output into bucket and key
func (c *Config) S3Location() (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(c.Output, "s3://")
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: '%s'", ErrS3OutputInvalid, c.Output)
	}
	return bucket, key, nil
}

func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return ErrInputRequired
	}

	// Exactly one output destination must be selected
	if c.Output == "" && !c.Stdout {
		return ErrNeedsOutput
	}
	if c.Output != "" && c.Stdout {
		return ErrOutputAndStdout
	}

	// Input and filter patterns must be syntactically valid before any
	// archive is opened
	for _, pattern := range c.Inputs {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("%w: '%s'", ErrInputPatternInvalid, pattern)
		}
	}
	if c.Filter != "" {
		if _, err := path.Match(c.Filter, ""); err != nil {
			return fmt.Errorf("%w: '%s'", ErrFilterPatternInvalid, c.Filter)
		}
	}

	if c.RowGroupSize < 1 {
		return fmt.Errorf("%w, got %d", ErrRowGroupSizeMinimum, c.RowGroupSize)
	}
	if c.RowGroupSize > 10000000 {
		return fmt.Errorf("%w, got %d", ErrRowGroupSizeMaximum, c.RowGroupSize)
	}

	if c.Workers < 1 {
		return ErrWorkersMinimum
	}
	// More than 1000 workers is unreasonable and could cause issues
	if c.Workers > 1000 {
		return fmt.Errorf("%w, got %d", ErrWorkersMaximum, c.Workers)
	}

	if !isValidCompression(c.Compression) {
		return fmt.Errorf("%w: '%s'", ErrCompressionInvalid, c.Compression)
	}

	if c.IsS3Output() {
		if _, _, err := c.S3Location(); err != nil {
			return err
		}
		if c.S3.Endpoint == "" {
			return ErrS3EndpointRequired
		}
		if c.S3.AccessKey == "" {
			return ErrS3AccessKeyRequired
		}
		if c.S3.SecretKey == "" {
			return ErrS3SecretKeyRequired
		}
	}

	return nil
}
