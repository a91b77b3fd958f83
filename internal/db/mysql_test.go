package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/zulandar/devtask/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// openMockStore wires a Store to a sqlmock connection through the MySQL dialector.
func openMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), gormConfig())
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return NewStore(gdb, nil), mock
}

func TestMySQL_WriteFailureIsUnavailable(t *testing.T) {
	s, mock := openMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE cards SET title").WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	err := s.Write(context.Background(), func(tx *gorm.DB) error {
		return tx.Exec("UPDATE cards SET title = ? WHERE id = ?", "x", 1).Error
	}, Cards)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMySQL_DuplicateKeyIsDuplicateName(t *testing.T) {
	s, mock := openMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO tags").
		WillReturnError(&mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry 'bug' for key 'idx_tags_name'"})
	mock.ExpectRollback()

	err := s.Write(context.Background(), func(tx *gorm.DB) error {
		return tx.Exec("INSERT INTO tags (name, color) VALUES (?, ?)", "bug", "red").Error
	}, Tags)
	if !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("err = %v, want ErrDuplicateName", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMySQL_CommitFailureIsUnavailable(t *testing.T) {
	s, mock := openMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM tags").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("lost connection"))

	err := s.Write(context.Background(), func(tx *gorm.DB) error {
		return tx.Exec("DELETE FROM tags WHERE id = ?", 1).Error
	}, Tags)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestReferencePredicate_Dialects(t *testing.T) {
	pred, err := ReferencePredicate("mysql", ColumnTagIDs, 42)
	if err != nil {
		t.Fatalf("ReferencePredicate: %v", err)
	}
	sql, args, err := pred.ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if sql != "JSON_CONTAINS(cards.tag_ids, ?)" {
		t.Errorf("mysql sql = %q", sql)
	}
	if len(args) != 1 || args[0] != "42" {
		t.Errorf("mysql args = %v, want [\"42\"]", args)
	}

	pred, _ = ReferencePredicate("sqlite", ColumnKnowledgeFileIDs, 7)
	sql, args, _ = pred.ToSql()
	if !strings.Contains(sql, "json_each(cards.knowledge_file_ids)") {
		t.Errorf("sqlite sql = %q", sql)
	}
	if len(args) != 1 || args[0] != uint(7) {
		t.Errorf("sqlite args = %v, want [7]", args)
	}

	if _, err := ReferencePredicate("mysql", "spec", 1); err == nil {
		t.Error("expected error for non-reference column")
	}
}

func TestMySQL_CardsReferencingUsesJSONContains(t *testing.T) {
	s, mock := openMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "title", "status", "knowledge_file_ids", "tag_ids",
		"test_cases", "requirement_chat_history", "pre_dev_analysis"}).
		AddRow(3, "Card", models.StatusTodo, "[]", "[9]", "[]", "[]", "{}")
	mock.ExpectQuery(`JSON_CONTAINS\(cards\.tag_ids, \?\)`).WithArgs("9").WillReturnRows(rows)

	cards, err := CardsReferencing(s.DB, ColumnTagIDs, 9)
	if err != nil {
		t.Fatalf("CardsReferencing: %v", err)
	}
	if len(cards) != 1 || cards[0].ID != 3 || !cards[0].HasTag(9) {
		t.Errorf("cards = %+v", cards)
	}
}
