package db

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Store errors. Every error returned by Service matches exactly one of these
// via errors.Is; callers never inspect provider error codes.
var (
	ErrNotFound         = errors.New("record not found")
	ErrTableMissing     = errors.New("api_keys table does not exist")
	ErrPermissionDenied = errors.New("permission denied")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrConnection       = errors.New("database connection failed")
	ErrQuery            = errors.New("database query failed")
)

// StoreError records the failed operation, its classification and the
// provider error.
type StoreError struct {
	Op   string
	Kind error
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == e.Kind }

// wrap classifies err and returns it as a *StoreError. nil stays nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Kind: Classify(err), Err: err}
}

// Classify maps a gorm or driver error onto one of the store errors.
func Classify(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "42P01":
			return ErrTableMissing
		case pgErr.Code == "42501":
			return ErrPermissionDenied
		case pgErr.Code == "23505":
			return ErrDuplicateKey
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "28"):
			return ErrConnection
		}
		return ErrQuery
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1146:
			return ErrTableMissing
		case 1044, 1045, 1142, 1143:
			return ErrPermissionDenied
		case 1062:
			return ErrDuplicateKey
		}
		return ErrQuery
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return ErrConnection
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrConnection
	}

	// sqlite reports everything as plain text.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such table"):
		return ErrTableMissing
	case strings.Contains(msg, "readonly database"), strings.Contains(msg, "permission denied"):
		return ErrPermissionDenied
	case strings.Contains(msg, "unique constraint failed"):
		return ErrDuplicateKey
	case strings.Contains(msg, "unable to open database"), strings.Contains(msg, "database is closed"):
		return ErrConnection
	}
	return ErrQuery
}
