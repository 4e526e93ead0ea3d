/*
Package odoo fetches the six source collections from an Odoo ERP over
JSON-RPC and normalizes them at the ingestion edge.

PURPOSE:
  This is the engine's only remote boundary. It implements syncer.Fetcher:
  given an optional "since" instant it returns projects, employees, sales
  orders, financial entries, timesheet lines and tasks, already enriched
  for downstream joins.

INGESTION NORMALIZATION:
  - nil-valued fields are scrubbed from every record
  - many-to-one references arrive as [id, label] pairs; timesheet and task
    project/employee references are reduced to scalar ids here
  - timesheet and task records gain project_name / employee_name fields by
    mapping reference ids through the fetched projects and employees

AUTH:
  One authenticate call per client, uid cached for subsequent execute_kw
  calls. Any transport, auth or protocol failure is returned as an error;
  the syncer maps it to the source-unreachable status.

PROTOCOL NOTE:
  Everything goes through POST {url}/jsonrpc with the generic "call"
  envelope. Odoo also speaks XML-RPC; JSON-RPC carries the same
  search_read payloads with one less dependency.
*/
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/meridian/insight-engine/dataset"
)

// sinceFormat is the datetime form Odoo domains expect.
const sinceFormat = "2006-01-02 15:04:05"

// Config identifies the Odoo instance and database.
type Config struct {
	URL      string
	Database string
	Username string
	APIKey   string
}

// Client fetches and normalizes Odoo data. Implements syncer.Fetcher.
type Client struct {
	cfg  Config
	http *http.Client

	uid    atomic.Int64 // 0 until authenticated
	nextID atomic.Int64 // JSON-RPC request ids
}

func New(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// =============================================================================
// FETCH - The syncer.Fetcher contract
// =============================================================================

// model describes one source model pull.
type model struct {
	name       string
	collection string
	fields     []string
	// dateField is the column the incremental "since" domain filters on;
	// empty means the model is always fetched in full.
	dateField string
}

var models = []model{
	{"project.project", dataset.CollectionProjects,
		[]string{"id", "name", "partner_id", "user_id", "date_start", "date", "active"}, "write_date"},
	{"hr.employee", dataset.CollectionEmployees,
		[]string{"id", "name", "department_id", "job_id"}, "write_date"},
	{"sale.order", dataset.CollectionSales,
		[]string{"name", "partner_id", "amount_total", "date_order"}, "date_order"},
	{"account.move", dataset.CollectionFinancials,
		[]string{"name", "move_type", "amount_total", "date"}, "date"},
	{"account.analytic.line", dataset.CollectionTimesheet,
		[]string{"id", "employee_id", "task_id", "project_id", "unit_amount", "date"}, "date"},
	{"project.task", dataset.CollectionTasks,
		[]string{"id", "project_id", "stage_id", "name", "create_date", "date_end"}, "write_date"},
}

// Fetch pulls all six collections, enriches them, and returns the snapshot.
func (c *Client) Fetch(ctx context.Context, since *time.Time) (dataset.Snapshot, error) {
	if err := c.authenticate(ctx); err != nil {
		return dataset.Snapshot{}, err
	}

	snap := dataset.Empty()
	for _, m := range models {
		var domain []any
		if since != nil && m.dateField != "" {
			domain = append(domain, []any{m.dateField, ">=", since.UTC().Format(sinceFormat)})
		}
		records, err := c.searchRead(ctx, m.name, m.fields, domain)
		if err != nil {
			return dataset.Snapshot{}, fmt.Errorf("fetch %s: %w", m.name, err)
		}
		snap.ByName(m.collection).Records = records
	}

	enrich(&snap)
	return snap, nil
}

// =============================================================================
// ENRICHMENT
// =============================================================================

// enrich reduces reference pairs to scalar ids on the join columns and adds
// the project_name / employee_name fields downstream joins group by.
func enrich(snap *dataset.Snapshot) {
	projectNames := nameIndex(snap.Projects)
	employeeNames := nameIndex(snap.Employees)

	for _, line := range snap.Timesheet.Records {
		scalarize(line, "project_id")
		scalarize(line, "employee_id")
		if id, ok := dataset.ScalarID(line["project_id"]); ok {
			if name, ok := projectNames[id]; ok {
				line["project_name"] = name
			}
		}
		if id, ok := dataset.ScalarID(line["employee_id"]); ok {
			if name, ok := employeeNames[id]; ok {
				line["employee_name"] = name
			}
		}
	}
	for _, task := range snap.Tasks.Records {
		scalarize(task, "project_id")
		if id, ok := dataset.ScalarID(task["project_id"]); ok {
			if name, ok := projectNames[id]; ok {
				task["project_name"] = name
			}
		}
	}
}

func nameIndex(c dataset.Collection) map[string]string {
	idx := make(map[string]string, c.Len())
	for _, r := range c.Records {
		name, ok := r.String("name")
		if !ok {
			continue
		}
		if id, ok := dataset.ScalarID(r[dataset.FieldID]); ok {
			idx[id] = name
		}
	}
	return idx
}

func scalarize(r dataset.Record, field string) {
	if v, ok := r[field]; ok {
		if id, _, ok := dataset.DecodeRef(v); ok {
			r[field] = id
		}
	}
}

// =============================================================================
// JSON-RPC TRANSPORT
// =============================================================================

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
}

func (e *rpcError) Error() string {
	if msg, ok := e.Data["message"].(string); ok && msg != "" {
		return msg
	}
	return e.Message
}

func (c *Client) authenticate(ctx context.Context) error {
	if c.uid.Load() != 0 {
		return nil
	}
	var uid json.Number
	err := c.call(ctx, "common", "authenticate",
		[]any{c.cfg.Database, c.cfg.Username, c.cfg.APIKey, map[string]any{}}, &uid)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	id, err := uid.Int64()
	if err != nil || id == 0 {
		return fmt.Errorf("authenticate: invalid credentials for %q", c.cfg.Username)
	}
	c.uid.Store(id)
	return nil
}

// searchRead runs search_read on one model and scrubs nil fields from the
// result, so absent and false-y Odoo fields read uniformly as absent.
func (c *Client) searchRead(ctx context.Context, modelName string, fields []string, domain []any) ([]dataset.Record, error) {
	if domain == nil {
		domain = []any{}
	}
	args := []any{
		c.cfg.Database, c.uid.Load(), c.cfg.APIKey,
		modelName, "search_read",
		[]any{domain, fields},
	}

	var records []dataset.Record
	if err := c.call(ctx, "object", "execute_kw", args, &records); err != nil {
		return nil, err
	}

	// Odoo returns false, not null, for unset non-boolean fields. Scrub
	// both so absence is uniform downstream; "active" is a real boolean
	// and keeps its value.
	for _, r := range records {
		for k, v := range r {
			if v == nil || (v == false && k != "active") {
				delete(r, k)
			}
		}
	}
	return records, nil
}

func (c *Client) call(ctx context.Context, service, method string, args []any, out any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/jsonrpc", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("odoo returned HTTP %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}
