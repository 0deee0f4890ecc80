package sqldriver

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/poucet/noema-sub001/pkg/document"
	"github.com/poucet/noema-sub001/pkg/entity"
	"github.com/poucet/noema-sub001/pkg/storage"
)

// CreateDocument inserts a document.
func (d *Driver) CreateDocument(ctx context.Context, doc *document.Document) error {
	if doc == nil {
		return errors.New("cannot store nil document")
	}

	query := `INSERT INTO documents (id, name, root_revision_id, current_revision_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := d.DB.ExecContext(ctx, d.rebind(query),
		doc.ID, doc.Name, doc.RootRevisionID, doc.CurrentRevisionID,
		fmtTime(doc.CreatedAt), fmtTime(doc.UpdatedAt))
	return storage.Unavailable("create document", err)
}

// GetDocument retrieves a document by id.
func (d *Driver) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	query := `SELECT id, name, root_revision_id, current_revision_id, created_at, updated_at FROM documents WHERE id = ?`

	doc, err := scanDocument(d.DB.QueryRowContext(ctx, d.rebind(query), id))
	var nf entity.NotFoundError
	if errors.As(err, &nf) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindDocument, ID: id}}
	}

	return doc, err
}

// ListDocuments returns all documents ordered by creation.
func (d *Driver) ListDocuments(ctx context.Context) ([]*document.Document, error) {
	query := `SELECT id, name, root_revision_id, current_revision_id, created_at, updated_at FROM documents ORDER BY created_at, id`

	rows, err := d.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, storage.Unavailable("list documents", err)
	}
	defer rows.Close()

	var result []*document.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}

	return result, storage.Unavailable("list documents", rows.Err())
}

// CommitRevision inserts the revision and advances the document's current
// pointer (and root, for the first revision) in one transaction.
func (d *Driver) CommitRevision(ctx context.Context, rev *document.Revision) error {
	if rev == nil {
		return errors.New("cannot store nil revision")
	}

	return d.inTx(ctx, "commit revision", func(tx *sql.Tx) error {
		var root string
		err := tx.QueryRowContext(ctx,
			d.rebind(`SELECT root_revision_id FROM documents WHERE id = ?`), rev.DocumentID).Scan(&root)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindDocument, ID: rev.DocumentID}}
		}
		if err != nil {
			return storage.Unavailable("commit revision", err)
		}

		if err := insertRevision(ctx, tx, d, rev); err != nil {
			return err
		}

		if root == "" {
			root = rev.ID
		}

		_, err = tx.ExecContext(ctx,
			d.rebind(`UPDATE documents SET root_revision_id = ?, current_revision_id = ?, updated_at = ? WHERE id = ?`),
			root, rev.ID, fmtTime(time.Now()), rev.DocumentID)
		return storage.Unavailable("commit revision", err)
	})
}

// CreateRevision inserts the revision without touching document pointers.
func (d *Driver) CreateRevision(ctx context.Context, rev *document.Revision) error {
	if rev == nil {
		return errors.New("cannot store nil revision")
	}

	return d.inTx(ctx, "create revision", func(tx *sql.Tx) error {
		return insertRevision(ctx, tx, d, rev)
	})
}

// GetRevision retrieves a revision by id.
func (d *Driver) GetRevision(ctx context.Context, id string) (*document.Revision, error) {
	query := `SELECT id, document_id, parent_id, content_id, created_at FROM revisions WHERE id = ?`

	var (
		rev       document.Revision
		parentID  sql.NullString
		createdAt string
	)

	err := d.DB.QueryRowContext(ctx, d.rebind(query), id).
		Scan(&rev.ID, &rev.DocumentID, &parentID, &rev.ContentID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindRevision, ID: id}}
	}
	if err != nil {
		return nil, storage.Unavailable("get revision", err)
	}

	if parentID.Valid {
		rev.ParentID = &parentID.String
	}
	rev.CreatedAt = parseTime(createdAt)

	return &rev, nil
}

// SetCurrentRevision moves a document's current pointer.
func (d *Driver) SetCurrentRevision(ctx context.Context, documentID, revisionID string) error {
	return d.inTx(ctx, "set current revision", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, d.rebind(`SELECT 1 FROM revisions WHERE id = ?`), revisionID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindRevision, ID: revisionID}}
		}
		if err != nil {
			return storage.Unavailable("set current revision", err)
		}

		res, err := tx.ExecContext(ctx,
			d.rebind(`UPDATE documents SET current_revision_id = ?, updated_at = ? WHERE id = ?`),
			revisionID, fmtTime(time.Now()), documentID)
		if err != nil {
			return storage.Unavailable("set current revision", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return storage.Unavailable("set current revision", err)
		}
		if n == 0 {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindDocument, ID: documentID}}
		}

		return nil
	})
}

// RevisionsByDocument returns a document's revisions ordered by creation.
func (d *Driver) RevisionsByDocument(ctx context.Context, documentID string) ([]*document.Revision, error) {
	query := `SELECT id, document_id, parent_id, content_id, created_at FROM revisions WHERE document_id = ? ORDER BY created_at, id`

	rows, err := d.DB.QueryContext(ctx, d.rebind(query), documentID)
	if err != nil {
		return nil, storage.Unavailable("list revisions", err)
	}
	defer rows.Close()

	var result []*document.Revision
	for rows.Next() {
		var (
			rev       document.Revision
			parentID  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&rev.ID, &rev.DocumentID, &parentID, &rev.ContentID, &createdAt); err != nil {
			return nil, storage.Unavailable("list revisions", err)
		}

		if parentID.Valid {
			rev.ParentID = &parentID.String
		}
		rev.CreatedAt = parseTime(createdAt)
		result = append(result, &rev)
	}

	return result, storage.Unavailable("list revisions", rows.Err())
}

func insertRevision(ctx context.Context, tx *sql.Tx, d *Driver, rev *document.Revision) error {
	if rev.ParentID != nil {
		var exists int
		err := tx.QueryRowContext(ctx, d.rebind(`SELECT 1 FROM revisions WHERE id = ?`), *rev.ParentID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindRevision, ID: *rev.ParentID}}
		}
		if err != nil {
			return storage.Unavailable("insert revision", err)
		}
	}

	var parent any
	if rev.ParentID != nil {
		parent = *rev.ParentID
	}

	_, err := tx.ExecContext(ctx,
		d.rebind(`INSERT INTO revisions (id, document_id, parent_id, content_id, created_at) VALUES (?, ?, ?, ?, ?)`),
		rev.ID, rev.DocumentID, parent, rev.ContentID, fmtTime(rev.CreatedAt))
	return storage.Unavailable("insert revision", err)
}

func scanDocument(row rowScanner) (*document.Document, error) {
	var (
		doc       document.Document
		createdAt string
		updatedAt string
	)

	err := row.Scan(&doc.ID, &doc.Name, &doc.RootRevisionID, &doc.CurrentRevisionID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.NotFoundError{Ref: entity.Ref{Kind: entity.KindDocument}}
	}
	if err != nil {
		return nil, storage.Unavailable("scan document", err)
	}

	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)

	return &doc, nil
}
