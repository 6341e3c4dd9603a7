// Package importer turns CSV rows into remote product records with per-row
// failure isolation.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"catalog-sync/models"
)

// Record is one raw CSV row keyed by lowercased, trimmed header name.
type Record map[string]string

// requiredColumns must all be present in the CSV header.
var requiredColumns = []string{"name", "description", "price", "stock", "category"}

// ValidationError flags one bad or missing field of an import row.
type ValidationError struct {
	Field   string
	Missing bool
}

func (e *ValidationError) Error() string {
	if e.Missing {
		return "missing " + e.Field
	}
	return "invalid " + e.Field
}

// ProductAPI is the slice of the catalog client the pipeline needs.
type ProductAPI interface {
	CreateProduct(ctx context.Context, draft models.ProductDraft) (models.Product, error)
}

// ImageAttacher attaches local image files to a freshly created product.
type ImageAttacher interface {
	Attach(ctx context.Context, productID string, paths []string) error
}

// Pipeline imports product rows one at a time. No row failure aborts the run;
// failures are collected into the summary. Cancellation is observed only
// between rows, so a cancelled run returns a valid partial summary.
type Pipeline struct {
	client   ProductAPI
	resolver *Resolver
	attacher ImageAttacher
	progress func(done, total int, name string)
}

// NewPipeline wires a pipeline. attacher may be nil, in which case the
// optional images column is ignored.
func NewPipeline(client ProductAPI, resolver *Resolver, attacher ImageAttacher) *Pipeline {
	return &Pipeline{client: client, resolver: resolver, attacher: attacher}
}

// SetProgress installs a callback invoked after each row completes.
func (p *Pipeline) SetProgress(fn func(done, total int, name string)) {
	p.progress = fn
}

// ImportCSV reads rows from r and imports them. It fails outright only when
// the input has no usable header; everything after that is per-row.
func (p *Pipeline) ImportCSV(ctx context.Context, r io.Reader) (*models.ImportSummary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("CSV must include a header row")
	}
	byIndex := make([]string, len(headers))
	seen := make(map[string]bool, len(headers))
	for i, h := range headers {
		name := strings.ToLower(strings.TrimSpace(h))
		byIndex[i] = name
		seen[name] = true
	}
	for _, col := range requiredColumns {
		if !seen[col] {
			return nil, fmt.Errorf("missing required CSV header: %s", col)
		}
	}

	// Collect all rows up front so progress reporting has a total. Rows that
	// fail to parse still occupy their row number and fail in place.
	type rowItem struct {
		num      int
		rec      Record
		parseErr bool
	}
	var items []rowItem
	rowNum := 0
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			items = append(items, rowItem{num: rowNum, parseErr: true})
			continue
		}
		rec := make(Record, len(fields))
		for i, v := range fields {
			if i < len(byIndex) {
				rec[byIndex[i]] = strings.TrimSpace(v)
			}
		}
		items = append(items, rowItem{num: rowNum, rec: rec})
	}

	summary := &models.ImportSummary{}
	total := len(items)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			zap.L().Warn("import cancelled", zap.Int("processed", summary.Total))
			return summary, nil
		}
		if item.parseErr {
			p.fail(summary, total, item.num, "", "failed to parse CSV row")
			continue
		}
		p.importRow(ctx, summary, total, item.num, item.rec)
	}
	return summary, nil
}

// Import processes pre-parsed records with the same per-row semantics as
// ImportCSV.
func (p *Pipeline) Import(ctx context.Context, records []Record) *models.ImportSummary {
	summary := &models.ImportSummary{}
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			zap.L().Warn("import cancelled", zap.Int("processed", summary.Total))
			return summary
		}
		p.importRow(ctx, summary, len(records), i+1, rec)
	}
	return summary
}

func (p *Pipeline) importRow(ctx context.Context, summary *models.ImportSummary, total, rowNum int, rec Record) {
	name := rec["name"]

	draft, imagePaths, err := buildDraft(rec)
	if err != nil {
		p.fail(summary, total, rowNum, name, err.Error())
		return
	}

	categoryID, err := p.resolver.Resolve(ctx, rec["category"])
	if err != nil {
		p.fail(summary, total, rowNum, name, err.Error())
		return
	}
	draft.CategoryID = categoryID

	product, err := p.client.CreateProduct(ctx, draft)
	if err != nil {
		p.fail(summary, total, rowNum, name, err.Error())
		return
	}

	summary.Total++
	summary.Succeeded++
	zap.L().Info("product imported",
		zap.Int("row", rowNum),
		zap.String("name", name),
		zap.String("id", product.ID),
	)

	// An attach failure does not fail the row: the product exists remotely
	// and counts as imported, its images can be reconciled later.
	if p.attacher != nil && len(imagePaths) > 0 {
		if err := p.attacher.Attach(ctx, product.ID, imagePaths); err != nil {
			zap.L().Warn("image attach failed after product creation",
				zap.Int("row", rowNum),
				zap.String("product_id", product.ID),
				zap.Error(err),
			)
		}
	}

	if p.progress != nil {
		p.progress(summary.Total, total, name)
	}
}

func (p *Pipeline) fail(summary *models.ImportSummary, total, rowNum int, name, msg string) {
	summary.Total++
	summary.Failed++
	summary.Failures = append(summary.Failures, models.RowFailure{
		Row:     rowNum,
		Name:    name,
		Message: msg,
	})
	zap.L().Error("import row failed",
		zap.Int("row", rowNum),
		zap.String("name", name),
		zap.String("reason", msg),
	)
	if p.progress != nil {
		p.progress(summary.Total, total, name)
	}
}

// buildDraft validates the row fields and assembles a ProductDraft. The
// category id is resolved by the caller; imagePaths carries the optional
// semicolon-separated images column.
func buildDraft(rec Record) (models.ProductDraft, []string, error) {
	var draft models.ProductDraft

	for _, field := range []string{"name", "description", "category"} {
		if rec[field] == "" {
			return draft, nil, &ValidationError{Field: field, Missing: true}
		}
	}

	price, err := strconv.ParseFloat(rec["price"], 64)
	if err != nil || price < 0 {
		return draft, nil, &ValidationError{Field: "price"}
	}
	stock, err := strconv.Atoi(rec["stock"])
	if err != nil || stock < 0 {
		return draft, nil, &ValidationError{Field: "stock"}
	}

	draft.Name = rec["name"]
	draft.Description = rec["description"]
	draft.Price = price
	draft.Stock = stock

	if raw := rec["originalprice"]; raw != "" {
		orig, err := strconv.ParseFloat(raw, 64)
		if err != nil || orig < 0 {
			return draft, nil, &ValidationError{Field: "originalPrice"}
		}
		draft.OriginalPrice = &orig
	}

	var paths []string
	for _, p := range strings.Split(rec["images"], ";") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return draft, paths, nil
}
