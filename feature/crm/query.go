package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"crm-sync/core/reconcile"
)

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func validName(s string) bool {
	return namePattern.MatchString(s)
}

type queryResponse struct {
	TotalSize      int64            `json:"totalSize"`
	Done           bool             `json:"done"`
	NextRecordsURL string           `json:"nextRecordsUrl"`
	Records        []map[string]any `json:"records"`
}

// query runs a SOQL statement and follows pagination until done.
func (c *Client) query(ctx context.Context, op, soql string) (*queryResponse, error) {
	q := url.Values{}
	q.Set("q", soql)
	next := c.apiURL("/query", q)

	total := &queryResponse{Records: []map[string]any{}}
	for next != "" {
		var page queryResponse
		if _, err := c.do(ctx, op, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		total.TotalSize = page.TotalSize
		total.Records = append(total.Records, page.Records...)
		next = ""
		if !page.Done && page.NextRecordsURL != "" {
			next = strings.TrimRight(c.cfg.BaseURL, "/") + page.NextRecordsURL
		}
	}
	total.Done = true
	return total, nil
}

// QueryIDsByStamp lists ids whose field falls in [start, end].
func (c *Client) QueryIDsByStamp(ctx context.Context, recordType, field string, start, end time.Time) ([]string, error) {
	if !validName(recordType) || !validName(field) {
		return nil, fmt.Errorf("invalid stamp query on %s.%s", recordType, field)
	}
	soql := fmt.Sprintf("SELECT Id FROM %s WHERE %s >= %s AND %s <= %s",
		recordType, field, formatTime(start), field, formatTime(end))
	res, err := c.query(ctx, "query_stamp", soql)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Records))
	for _, row := range res.Records {
		if id, ok := row[reconcile.DefaultIDField].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Count returns the number of records of the type.
func (c *Client) Count(ctx context.Context, recordType string) (int64, error) {
	if !validName(recordType) {
		return 0, fmt.Errorf("invalid record type %q", recordType)
	}
	res, err := c.query(ctx, "count", "SELECT COUNT() FROM "+recordType)
	if err != nil {
		return 0, err
	}
	return res.TotalSize, nil
}

// PageRecords returns up to limit records with an id greater than afterID, ascending.
func (c *Client) PageRecords(ctx context.Context, recordType, afterID string, limit int) ([]reconcile.RemoteRecord, error) {
	fields, err := c.fieldList(recordType)
	if err != nil {
		return nil, err
	}
	soql := "SELECT " + strings.Join(fields, ", ") + " FROM " + recordType
	if afterID != "" {
		soql += " WHERE Id > '" + escape(afterID) + "'"
	}
	soql += fmt.Sprintf(" ORDER BY Id ASC LIMIT %d", limit)

	res, err := c.query(ctx, "page", soql)
	if err != nil {
		return nil, err
	}
	out := make([]reconcile.RemoteRecord, 0, len(res.Records))
	for _, row := range res.Records {
		out = append(out, toRecord(recordType, row))
	}
	return out, nil
}

func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
