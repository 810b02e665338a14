package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/scd2/internal/record"
)

// UpsertSource inserts or replaces source rows by id in one transaction.
func (s *Store) UpsertSource(ctx context.Context, schema record.Schema, rows []record.SourceRecord) error {
	if err := requireTables(ctx, s.db, schema); err != nil {
		return err
	}

	sets := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		sets[i] = fmt.Sprintf("%s = excluded.%s", quoteIdent(c.Name), quoteIdent(c.Name))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(schema.Columns)+1), ", ")
	query := fmt.Sprintf(
		"INSERT INTO %s (id, %s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		quoteIdent(schema.Source), columnList(schema), placeholders, strings.Join(sets, ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert source: begin: %w", err)
	}
	defer tx.Rollback()

	for _, row := range rows {
		if len(row.Attrs) != len(schema.Columns) {
			return fmt.Errorf("upsert source %d: expected %d attributes, got %d", row.ID, len(schema.Columns), len(row.Attrs))
		}
		args := make([]any, 0, len(row.Attrs)+1)
		args = append(args, row.ID)
		for _, a := range row.Attrs {
			args = append(args, record.SQLArg(a))
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert source %d: %w", row.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert source: commit: %w", err)
	}
	return nil
}

// DeleteSource removes source rows by id. History in the target is left alone.
func (s *Store) DeleteSource(ctx context.Context, schema record.Schema, ids []int64) (int64, error) {
	if err := requireTables(ctx, s.db, schema); err != nil {
		return 0, err
	}
	var total int64
	for _, id := range ids {
		res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", quoteIdent(schema.Source)), id)
		if err != nil {
			return total, fmt.Errorf("delete source %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("delete source %d: rows affected: %w", id, err)
		}
		total += n
	}
	return total, nil
}

// SampleSales returns the demo rows for the built-in sales dimension, in
// column order: transaction_date, product_name, category, price, quantity,
// total_amount, customer_id, region, status.
func SampleSales() []record.SourceRecord {
	row := func(id int64, date, product, category, price string, qty int64, total string, customer int64, region, status string) record.SourceRecord {
		return record.SourceRecord{
			ID: id,
			Attrs: []record.Value{
				record.Text(date),
				record.Text(product),
				record.Text(category),
				record.MustNumeric(price),
				record.Int(qty),
				record.MustNumeric(total),
				record.Int(customer),
				record.Text(region),
				record.Text(status),
			},
		}
	}
	return []record.SourceRecord{
		row(1, "2024-01-15", "Laptop", "Electronics", "1299.99", 1, "1299.99", 1001, "North", "Active"),
		row(2, "2024-01-16", "Office Chair", "Furniture", "249.5", 2, "499", 1002, "South", "Active"),
		row(3, "2024-01-17", "Coffee Maker", "Appliances", "89.99", 1, "89.99", 1003, "East", "Active"),
		row(4, "2024-01-18", "Desk Lamp", "Furniture", "34.75", 4, "139", 1004, "West", "Active"),
		row(5, "2024-01-19", "Headphones", "Electronics", "199.99", 1, "199.99", 1001, "North", "Active"),
		row(6, "2024-01-20", "Notebook Set", "Stationery", "12.5", 10, "125", 1005, "South", "Pending"),
		row(7, "2024-01-21", "Monitor", "Electronics", "329", 2, "658", 1006, "East", "Active"),
	}
}
