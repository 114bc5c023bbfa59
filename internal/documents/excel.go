package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

const excelSheet = "Documents"

var excelHeader = []string{"Id", "CompanyCode", "Filename", "ProductName", "Department", "Site", "Tags"}

// ExportExcel renders documents to an xlsx workbook. With ids it exports just
// those documents; without, the whole catalog.
func (s *Service) ExportExcel(ctx context.Context, ids []string) ([]byte, error) {
	var docs []Document
	var err error
	if len(ids) > 0 {
		docs, err = s.Repo.ListByIDs(ctx, ids)
	} else {
		docs, err = s.allDocuments(ctx)
	}
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(excelSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(excelSheet, "A1", &excelHeader); err != nil {
		return nil, err
	}
	for i, doc := range docs {
		row := []any{
			doc.ID,
			doc.CompanyCode,
			doc.Filename,
			doc.ProductName,
			doc.Department,
			doc.Site,
			strings.Join(doc.Tags, ","),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(excelSheet, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ImportExcel applies metadata rows from an xlsx workbook. Rows are read from
// the first sheet starting at row 2; rows without an id are skipped and rows
// whose id is unknown fail silently. Returns the number of documents updated.
func (s *Service) ImportExcel(ctx context.Context, r io.Reader) (int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return 0, fmt.Errorf("%w: not a valid xlsx workbook", ErrInvalidInput)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		id := strings.TrimSpace(cellAt(row, 0))
		if id == "" {
			continue
		}

		productName := cellAt(row, 3)
		department := cellAt(row, 4)
		site := cellAt(row, 5)
		tags := splitTags(cellAt(row, 6))
		patch := Metadata{
			ProductName: &productName,
			Department:  &department,
			Site:        &site,
			Tags:        &tags,
		}

		if _, err := s.UpdateMetadata(ctx, id, patch); err != nil {
			continue
		}
		updated++
	}
	return updated, nil
}

// allDocuments pages through the repository to collect the full catalog.
func (s *Service) allDocuments(ctx context.Context) ([]Document, error) {
	const pageSize = 100
	var out []Document
	for offset := 0; ; offset += pageSize {
		page, total, err := s.Repo.List(ctx, Filter{Offset: offset, Limit: pageSize})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) == 0 || len(out) >= total {
			return out, nil
		}
	}
}

func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func splitTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
