package testsupport

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Account mirrors the columns of the production user table that the account
// reports read.
type Account struct {
	ID         uint    `gorm:"primaryKey"`
	Username   string  `gorm:"column:username"`
	AuthMethod *string `gorm:"column:auth_method"`
	LastLogin  time.Time
}

func (Account) TableName() string { return "user" }

// UserList mirrors the production user_list table.
type UserList struct {
	ID     uint `gorm:"primaryKey"`
	Title  string
	Public int `gorm:"column:public"`
}

func (UserList) TableName() string { return "user_list" }

// testDBCache lets setup helpers called from subtests share the root test's
// database
var testDBCache = make(map[string]*gorm.DB)
var testDBCacheMu sync.Mutex

// SetupTestDB opens a migrated in-memory database that is closed when the
// root test finishes.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	rootName := t.Name()
	if idx := strings.Index(rootName, "/"); idx > 0 {
		rootName = rootName[:idx]
	}

	testDBCacheMu.Lock()
	if db, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return db
	}
	testDBCacheMu.Unlock()

	// cache=shared keeps one database across pooled connections
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", rootName, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&Account{}, &UserList{}); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	testDBCacheMu.Lock()
	testDBCache[rootName] = db
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}

// Method returns a pointer for Account.AuthMethod; "NULL" yields nil.
func Method(name string) *string {
	if name == "NULL" {
		return nil
	}
	return &name
}

// CreateTestAccounts inserts one account per username with the given method
// and last login time.
func CreateTestAccounts(t *testing.T, db *gorm.DB, method string, lastLogin time.Time, usernames ...string) {
	t.Helper()
	for _, username := range usernames {
		account := Account{Username: username, AuthMethod: Method(method), LastLogin: lastLogin.UTC()}
		if err := db.Create(&account).Error; err != nil {
			t.Fatalf("testsupport: failed to create account %s: %v", username, err)
		}
	}
}

// CreateTestUserLists inserts one list per flag, public when true.
func CreateTestUserLists(t *testing.T, db *gorm.DB, public ...bool) {
	t.Helper()
	for i, p := range public {
		list := UserList{Title: fmt.Sprintf("list %d", i)}
		if p {
			list.Public = 1
		}
		if err := db.Create(&list).Error; err != nil {
			t.Fatalf("testsupport: failed to create user list: %v", err)
		}
	}
}

// TestTimeProvider is a clock frozen at CurrentTime.
type TestTimeProvider struct {
	CurrentTime time.Time
}

func (p *TestTimeProvider) Now(loc *time.Location) time.Time {
	return p.CurrentTime.In(loc)
}

// FakeResponse is what a FakeServer answers for one request.
type FakeResponse struct {
	Status  int
	Body    string
	Latency time.Duration
}

// FakeServer is an HTTP endpoint answering from a handler over the decoded
// query and recording every query it saw.
type FakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []url.Values
}

// NewFakeServer starts a server that is closed with the test. A zero Status
// means 200.
func NewFakeServer(t *testing.T, handler func(query url.Values) FakeResponse) *FakeServer {
	t.Helper()
	s := &FakeServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		s.mu.Lock()
		s.requests = append(s.requests, query)
		s.mu.Unlock()

		resp := handler(query)
		if resp.Latency > 0 {
			time.Sleep(resp.Latency)
		}
		if resp.Status == 0 {
			resp.Status = http.StatusOK
		}
		w.WriteHeader(resp.Status)
		io.WriteString(w, resp.Body)
	}))
	t.Cleanup(s.Close)
	return s
}

// Requests returns the queries received so far, in arrival order.
func (s *FakeServer) Requests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.requests...)
}
