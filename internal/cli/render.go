package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/koustreak/vizly/internal/errs"
	"github.com/koustreak/vizly/internal/executor"
	"github.com/koustreak/vizly/internal/schema"
	"go.yaml.in/yaml/v3"
)

func renderResult(w io.Writer, res *executor.Result, format string) error {
	switch format {
	case "json":
		return renderJSON(w, res)
	case "csv":
		return renderCSV(w, res)
	case "table", "":
		return renderResultTable(w, res)
	}
	return unknownFormat(format)
}

func renderResultTable(w io.Writer, res *executor.Result) error {
	if len(res.Columns) == 0 {
		_, _ = fmt.Fprintf(w, "(%d rows affected, %d ms)\n", res.RowCount, res.ExecutionTimeMs)
		return nil
	}
	if len(res.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = col.Name
	}
	t.AppendHeader(header)

	for _, r := range res.Rows {
		row := make(table.Row, len(res.Columns))
		for i, col := range res.Columns {
			row[i] = formatValue(r[col.Name])
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows, %d ms)\n", res.RowCount, res.ExecutionTimeMs)
	if res.Truncated {
		_, _ = fmt.Fprintf(w, "result truncated at %d rows\n", res.MaxRows)
	}
	return nil
}

func renderCSV(w io.Writer, res *executor.Result) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = col.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range res.Rows {
		values := make([]string, len(res.Columns))
		for i, col := range res.Columns {
			if v := r[col.Name]; v != nil {
				values[i] = formatValue(v)
			}
		}
		if err := cw.Write(values); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func renderSnapshot(w io.Writer, snap *schema.Snapshot, format string) error {
	switch format {
	case "json":
		return renderJSON(w, snap)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		return renderSnapshotTables(w, snap)
	}
	return unknownFormat(format)
}

func renderSnapshotTables(w io.Writer, snap *schema.Snapshot) error {
	if len(snap.Tables) == 0 {
		_, _ = fmt.Fprintf(w, "%s (%s): no tables\n", snap.ConnectionID, snap.Dialect)
		return nil
	}

	for i, tbl := range snap.Tables {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}

		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.SetTitle(tbl.Name)
		t.AppendHeader(table.Row{"column", "type", "nullable", "default", "pk"})
		for _, col := range tbl.Columns {
			def := ""
			if col.Default != nil {
				def = *col.Default
			}
			t.AppendRow(table.Row{col.Name, col.Type, yesNo(col.Nullable), def, yesNo(col.PrimaryKey)})
		}
		t.Render()

		for _, fk := range tbl.ForeignKeys {
			_, _ = fmt.Fprintf(w, "  fk %s (%s) -> %s (%s)\n",
				fk.Name, strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", "))
		}
		for _, idx := range tbl.Indexes {
			kind := "index"
			if idx.Unique {
				kind = "unique"
			}
			_, _ = fmt.Fprintf(w, "  %s %s (%s)\n", kind, idx.Name, strings.Join(idx.Columns, ", "))
		}
	}
	return nil
}

func renderProbe(w io.Writer, id string, res *executor.ProbeResult, format string) error {
	switch format {
	case "json":
		return renderJSON(w, res)
	case "table", "":
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"connection", "ok", "latency", "message"})
		t.AppendRow(table.Row{id, yesNo(res.OK), fmt.Sprintf("%d ms", res.LatencyMs), res.Message})
		t.Render()
		return nil
	}
	return unknownFormat(format)
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return x.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func unknownFormat(format string) error {
	return errs.New(errs.ErrKindInvalidInput, "unknown output format: "+format)
}
