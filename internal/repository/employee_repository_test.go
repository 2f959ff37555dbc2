package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vacation-api/internal/models"
)

var employeeRowColumns = []string{"id", "full_name", "email", "manager_id", "manager_name", "user_id", "active", "created_at", "updated_at"}

func TestEmployeeFindByUserID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.user_id = $1")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(employeeRowColumns).
			AddRow("emp-1", "Ada", "ada@example.com", "mgr-1", "Grace", "user-1", true, now, now))

	employee, err := repo.FindByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "emp-1", employee.ID)
	require.NotNil(t, employee.ManagerName)
	assert.Equal(t, "Grace", *employee.ManagerName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeExistsByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("ada@example.com", "").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByEmail(context.Background(), "ada@example.com", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeListSearch(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	active := true
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.active = $1 AND (LOWER(e.full_name) LIKE $2 OR LOWER(e.email) LIKE $2) ORDER BY e.full_name ASC")).
		WithArgs(true, "%ada%").
		WillReturnRows(sqlmock.NewRows(employeeRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM employees e WHERE")).
		WithArgs(true, "%ada%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.EmployeeFilter{Active: &active, Search: "ADA"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEmployeeUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEmployeeRepository(db)

	mock.ExpectExec("UPDATE employees SET").WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Employee{ID: "gone", FullName: "X", Email: "x@example.com"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
