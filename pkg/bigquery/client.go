// Package bigquery owns the analytics dataset: it checks the fact tables at
// startup, creates the ones it has a row prototype for, and streams rows.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/pubsub"
)

const metadataTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// TableSpec describes a fact table the client may create. Row is a struct
// prototype whose bigquery tags define the schema.
type TableSpec struct {
	Name           string
	Row            any
	PartitionField string
}

// InsertIDer rows carry a stable id so BigQuery drops streaming retries of
// the same row on a best-effort basis.
type InsertIDer interface {
	InsertID() string
}

type Pinger interface {
	Ping(context.Context) error
}

type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	// tables maps every required table to its spec; a nil spec means the
	// table must already exist.
	tables map[string]*TableSpec
}

// NewClient dials BigQuery and checks the dataset and configured tables.
// Missing tables with a spec are created; others are an error.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger, specs ...TableSpec) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	tables := requiredTables(cfg, specs)
	if len(tables) == 0 {
		return nil, errTableNameRequired
	}

	raw, err := bigquery.NewClient(ctx, projectID, pubsub.ClientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: raw, dataset: raw.Dataset(datasetID), tables: tables}
	if err := c.reconcile(ctx); err != nil {
		_ = raw.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": datasetID,
			"tables":  len(tables),
		}), "bigquery client initialized")
	}
	return c, nil
}

func requiredTables(cfg config.BigQueryConfig, specs []TableSpec) map[string]*TableSpec {
	tables := map[string]*TableSpec{}
	for _, name := range []string{cfg.SalesFactsTable, cfg.StockFactsTable} {
		if name = strings.TrimSpace(name); name != "" {
			tables[name] = nil
		}
	}
	for _, spec := range specs {
		spec.Name = strings.TrimSpace(spec.Name)
		if _, wanted := tables[spec.Name]; !wanted || spec.Row == nil {
			continue
		}
		tables[spec.Name] = &spec
	}
	return tables
}

// reconcile makes sure the dataset exists and every required table is
// present, creating the ones it can.
func (c *Client) reconcile(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("dataset %q does not exist", c.dataset.DatasetID)
		}
		return fmt.Errorf("checking dataset %q: %w", c.dataset.DatasetID, err)
	}

	for name, spec := range c.tables {
		_, err := c.dataset.Table(name).Metadata(ctx)
		switch {
		case err == nil:
			continue
		case !isNotFound(err):
			return fmt.Errorf("checking table %q: %w", name, err)
		case spec == nil:
			return fmt.Errorf("table %q does not exist", name)
		}
		meta, err := tableMetadata(*spec)
		if err != nil {
			return err
		}
		if err := c.dataset.Table(name).Create(ctx, meta); err != nil && !isConflict(err) {
			return fmt.Errorf("creating table %q: %w", name, err)
		}
	}
	return nil
}

func tableMetadata(spec TableSpec) (*bigquery.TableMetadata, error) {
	schema, err := bigquery.InferSchema(spec.Row)
	if err != nil {
		return nil, fmt.Errorf("inferring schema for %q: %w", spec.Name, err)
	}
	meta := &bigquery.TableMetadata{Schema: schema}
	if field := strings.TrimSpace(spec.PartitionField); field != "" {
		meta.TimePartitioning = &bigquery.TimePartitioning{Type: bigquery.DayPartitioningType, Field: field}
	}
	return meta, nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return errClientNotInitialized
	}
	return c.reconcile(ctx)
}

// InsertRows streams rows into table. Rows implementing InsertIDer are sent
// with their insert id.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, withInsertIDs(rows))
}

func withInsertIDs(rows []any) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		ider, ok := row.(InsertIDer)
		if !ok || ider.InsertID() == "" {
			out[i] = row
			continue
		}
		out[i] = &bigquery.StructSaver{Struct: row, InsertID: ider.InsertID()}
	}
	return out
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func apiStatus(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr != nil {
		return apiErr.Code
	}
	return 0
}

func isNotFound(err error) bool { return apiStatus(err) == http.StatusNotFound }

// another replica may create the table between our check and create
func isConflict(err error) bool { return apiStatus(err) == http.StatusConflict }
