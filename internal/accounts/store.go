package accounts

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"finnastats/internal/config"
	"finnastats/internal/database"
)

// Store reads accounts from one table of the relational store.
type Store struct {
	db        *gorm.DB
	dialect   database.Dialect
	table     string
	username  string
	method    string
	lastLogin string
	separator string
}

// NewStore creates a Store over the configured account table.
func NewStore(db *gorm.DB, dialect database.Dialect, cfg config.UserCounts) *Store {
	return &Store{
		db:        db,
		dialect:   dialect,
		table:     cfg.Table,
		username:  cfg.UsernameColumn,
		method:    cfg.MethodColumn,
		lastLogin: cfg.LastLoginColumn,
		separator: cfg.Separator,
	}
}

// Subgroups lists the distinct authentication methods.
func (s *Store) Subgroups(ctx context.Context) ([]Subgroup, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s", s.dialect.Quote(s.method), s.dialect.Quote(s.table))
	rows, err := s.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subgroups []Subgroup
	for rows.Next() {
		var method sql.NullString
		if err := rows.Scan(&method); err != nil {
			return nil, err
		}
		if method.Valid {
			subgroups = append(subgroups, Subgroup{Name: method.String})
		} else {
			subgroups = append(subgroups, NullSubgroup())
		}
	}
	return subgroups, rows.Err()
}

// Groups lists the distinct organisations, the username prefix before the
// separator.
func (s *Store) Groups(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s", s.prefix(), s.dialect.Quote(s.table))
	rows, err := s.db.WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var group sql.NullString
		if err := rows.Scan(&group); err != nil {
			return nil, err
		}
		if group.Valid {
			groups = append(groups, group.String)
		}
	}
	return groups, rows.Err()
}

// Counts runs the grouped count query and streams its rows to fn.
func (s *Store) Counts(ctx context.Context, filter Filter, fn func(Triple) error) error {
	query, args := s.countQuery(filter)
	rows, err := s.db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			group  sql.NullString
			method sql.NullString
			count  int64
		)
		if err := rows.Scan(&group, &method, &count); err != nil {
			return err
		}
		tr := Triple{Group: group.String, Count: count, Subgroup: NullSubgroup()}
		if method.Valid {
			tr.Subgroup = Subgroup{Name: method.String}
		}
		if err := fn(tr); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) countQuery(filter Filter) (string, []any) {
	prefix := s.prefix()
	method := s.dialect.Quote(s.method)

	var clauses []string
	var args []any

	if len(filter.Subgroups) > 0 {
		var alternatives []string
		var names []string
		for _, sg := range filter.Subgroups {
			if sg.Null {
				alternatives = append(alternatives, method+" IS NULL")
				continue
			}
			names = append(names, sg.Key())
		}
		if len(names) > 0 {
			alternatives = append(alternatives, "LOWER("+method+") IN ?")
			args = append(args, names)
		}
		clauses = append(clauses, "("+strings.Join(alternatives, " OR ")+")")
	}

	if len(filter.Groups) > 0 {
		groups := make([]string, len(filter.Groups))
		for i, g := range filter.Groups {
			groups[i] = strings.ToLower(g)
		}
		clauses = append(clauses, "LOWER("+prefix+") IN ?")
		args = append(args, groups)
	}

	if filter.MaxAge > 0 {
		expr, arg := s.dialect.RecentExpr(s.lastLogin, int64(filter.MaxAge/time.Second))
		clauses = append(clauses, expr)
		args = append(args, arg)
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	query := fmt.Sprintf("SELECT %[1]s, %[2]s, COUNT(*) FROM %[3]s%[4]s GROUP BY %[1]s, %[2]s",
		prefix, method, s.dialect.Quote(s.table), where)
	return query, args
}

func (s *Store) prefix() string {
	return s.dialect.PrefixExpr(s.username, s.separator)
}
