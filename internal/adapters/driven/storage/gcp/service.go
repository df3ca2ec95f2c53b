package gcp

import (
	"context"
	"fmt"
	"net/http"

	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// Config holds the Google Cloud settings.
type Config struct {
	Project         string
	Dataset         string
	Bucket          string
	Prefix          string
	Location        string
	CredentialsFile string

	// Endpoints override the API base URLs.
	StorageEndpoint       string
	BigQueryEndpoint      string
	SecretManagerEndpoint string

	// HTTPClient replaces the authenticated transport. Used in tests.
	HTTPClient *http.Client
}

// clientOptions translates the config into API client options.
func (c Config) clientOptions(endpoint string) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case c.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(c.HTTPClient))
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}

// NewStorageService creates a Cloud Storage API service.
func NewStorageService(ctx context.Context, cfg Config) (*storage.Service, error) {
	svc, err := storage.NewService(ctx, cfg.clientOptions(cfg.StorageEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return svc, nil
}

// NewBigQueryService creates a BigQuery API service.
func NewBigQueryService(ctx context.Context, cfg Config) (*bigquery.Service, error) {
	svc, err := bigquery.NewService(ctx, cfg.clientOptions(cfg.BigQueryEndpoint)...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery service: %w", err)
	}
	return svc, nil
}
