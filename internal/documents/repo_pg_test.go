package documents

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateSerializesTags(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	doc := Document{
		ID:          "doc-1",
		CompanyCode: "ACME",
		Filename:    "acetone.pdf",
		BlobPath:    "ACME/abc-acetone.pdf",
		ProductName: "Acetone",
		Department:  "Lab",
		Site:        "Plant 1",
		Tags:        []string{"solvent", "flammable"},
		FullText:    "highly flammable",
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			doc.ID,
			doc.CompanyCode,
			doc.Filename,
			doc.BlobPath,
			doc.ProductName,
			doc.Department,
			doc.Site,
			`["solvent","flammable"]`,
			doc.FullText,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateNilTagsBecomeEmptyArray(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs(
			"doc-2", "ACME", "f.pdf", "ACME/f.pdf", "", "", "",
			`[]`,
			"",
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	doc := Document{ID: "doc-2", CompanyCode: "ACME", Filename: "f.pdf", BlobPath: "ACME/f.pdf", CreatedAt: time.Now().UTC()}
	if err := repo.Create(context.Background(), doc); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDDeserializesTags(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	created := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "company_code", "filename", "blob_path", "product_name",
		"department", "site", "tags", "full_text", "created_at",
	}).AddRow("doc-1", "ACME", "acetone.pdf", "ACME/abc-acetone.pdf", "Acetone",
		"Lab", "Plant 1", `["solvent","flammable"]`, "text", created)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id =").
		WithArgs("doc-1").
		WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !reflect.DeepEqual(doc.Tags, []string{"solvent", "flammable"}) {
		t.Fatalf("unexpected tags: %v", doc.Tags)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id =").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "company_code", "filename", "blob_path", "product_name",
			"department", "site", "tags", "full_text", "created_at",
		}))

	if _, err := repo.GetByID(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoListAppliesFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents WHERE company_code = \\$1 AND department = \\$2").
		WithArgs("ACME", "Lab").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows([]string{
		"id", "company_code", "filename", "blob_path", "product_name",
		"department", "site", "tags", "full_text", "created_at",
	}).AddRow("doc-1", "ACME", "acetone.pdf", "ACME/abc", "Acetone", "Lab", "", `[]`, "", time.Now().UTC())

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE company_code = \\$1 AND department = \\$2 ORDER BY created_at DESC").
		WithArgs("ACME", "Lab", 20, 0).
		WillReturnRows(rows)

	docs, total, err := repo.List(context.Background(), Filter{CompanyCode: "ACME", Department: "Lab"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 1 || len(docs) != 1 {
		t.Fatalf("unexpected result: total=%d len=%d", total, len(docs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}

	mock.ExpectExec("UPDATE documents").
		WithArgs("", "", "", `[]`, "", "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Update(context.Background(), Document{ID: "missing"}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
