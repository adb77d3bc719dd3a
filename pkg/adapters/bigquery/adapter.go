// Package bigquery provides the Google BigQuery warehouse adapter for LeapETL.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/go-viper/mapstructure/v2"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/leapstack-labs/leapetl/pkg/core"
)

// Params holds BigQuery-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Project is the billing project queries run in.
	Project string `mapstructure:"project"`

	// Location pins jobs to a region (e.g. "EU").
	Location string `mapstructure:"location"`

	// CredentialsFile is a service-account JSON key; empty uses
	// application default credentials.
	CredentialsFile string `mapstructure:"credentials_file"`
}

// ParseParams decodes the generic params map into Params.
func ParseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid bigquery params: %w", err)
	}
	if p.Project == "" {
		p.Project = bigquery.DetectProjectID
	}
	return p, nil
}

// Adapter implements the adapter.Adapter interface for BigQuery.
type Adapter struct {
	client *bigquery.Client
	params *Params
	logger *slog.Logger
}

// New creates a new BigQuery adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{logger: logger}
}

// Connect creates an authenticated BigQuery client.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	var opts []option.ClientOption
	if params.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(params.CredentialsFile))
	}

	a.logger.Debug("connecting to bigquery", slog.String("project", params.Project), slog.String("location", params.Location))

	client, err := bigquery.NewClient(ctx, params.Project, opts...)
	if err != nil {
		return fmt.Errorf("failed to create bigquery client: %w", err)
	}
	if params.Location != "" {
		client.Location = params.Location
	}

	a.client = client
	a.params = params
	return nil
}

// Close releases the client.
func (a *Adapter) Close() error {
	if a.client == nil {
		return nil
	}
	a.logger.Debug("closing bigquery client")
	err := a.client.Close()
	a.client = nil
	return err
}

// Exec runs a statement and waits for the job to finish.
func (a *Adapter) Exec(ctx context.Context, sql string) error {
	if a.client == nil {
		return fmt.Errorf("bigquery client not established")
	}
	job, err := a.client.Query(sql).Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to start query job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job %s failed: %w", job.ID(), err)
	}
	return nil
}

// Query runs sql and materialises every result row.
func (a *Adapter) Query(ctx context.Context, sql string) (*core.Table, error) {
	if a.client == nil {
		return nil, fmt.Errorf("bigquery client not established")
	}
	a.logger.Debug("executing query", slog.String("sql", sql))

	it, err := a.client.Query(sql).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}

	tbl := &core.Table{}
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = convertValue(v)
		}
		tbl.Rows = append(tbl.Rows, values)
	}
	tbl.Columns = columnsFromSchema(it.Schema)

	return tbl, nil
}

// QuoteTable renders `dataset.table`.
func (a *Adapter) QuoteTable(dataset, table string) string {
	ref := table
	if dataset != "" {
		ref = dataset + "." + table
	}
	return "`" + strings.ReplaceAll(ref, "`", "") + "`"
}

func columnsFromSchema(schema bigquery.Schema) []core.Column {
	cols := make([]core.Column, len(schema))
	for i, f := range schema {
		typ := string(f.Type)
		cols[i] = core.Column{Name: f.Name, Type: typ, Kind: core.KindOf(typ)}
	}
	return cols
}

// convertValue maps BigQuery's civil types onto the Table value set.
func convertValue(v bigquery.Value) any {
	switch x := v.(type) {
	case civil.Date:
		return time.Date(x.Year, x.Month, x.Day, 0, 0, 0, 0, time.UTC)
	case civil.DateTime:
		return x.In(time.UTC)
	case civil.Time:
		return x.String()
	default:
		return core.NormalizeValue(x)
	}
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
