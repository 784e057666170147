package tracing

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A TraceWriter stores finished tasks.
type TraceWriter interface {
	Init()
	Write(task Task)
	Flush()
}

// SQLiteTraceWriter is a writer that writes trace data to a SQLite database.
type SQLiteTraceWriter struct {
	*sql.DB

	lock             sync.Mutex
	statement        *sql.Stmt
	dbName           string
	tasksToWriteToDB []Task
	batchSize        int
}

// NewSQLiteTraceWriter creates a new SQLiteTraceWriter. The database is
// created at path with the ".sqlite3" extension added. An empty path picks a
// unique name in the working directory.
func NewSQLiteTraceWriter(path string) *SQLiteTraceWriter {
	w := &SQLiteTraceWriter{
		dbName:    path,
		batchSize: 1000,
	}

	atexit.Register(func() { w.Flush() })

	return w
}

// WithBatchSize sets how many tasks are buffered before they are written.
func (t *SQLiteTraceWriter) WithBatchSize(n int) *SQLiteTraceWriter {
	t.batchSize = n
	return t
}

// FileName returns the path of the database file.
func (t *SQLiteTraceWriter) FileName() string {
	return t.dbName + ".sqlite3"
}

// Init establishes a connection to the database.
func (t *SQLiteTraceWriter) Init() {
	t.createDatabase()
	t.createTable()
	t.prepareStatement()
}

// Write writes a task to the database.
func (t *SQLiteTraceWriter) Write(task Task) {
	t.lock.Lock()
	t.tasksToWriteToDB = append(t.tasksToWriteToDB, task)
	full := len(t.tasksToWriteToDB) >= t.batchSize
	t.lock.Unlock()

	if full {
		t.Flush()
	}
}

// Flush writes all the buffered tasks to the database.
func (t *SQLiteTraceWriter) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.tasksToWriteToDB) == 0 {
		return
	}

	t.mustExecute("BEGIN TRANSACTION")
	defer t.mustExecute("COMMIT TRANSACTION")

	for _, task := range t.tasksToWriteToDB {
		steps, err := json.Marshal(task.Steps)
		if err != nil {
			panic(err)
		}

		_, err = t.statement.Exec(
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Where,
			seconds(task.StartTime),
			seconds(task.EndTime),
			string(steps),
			outcome(task.Detail),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to insert task %s\n", task.ID)
			panic(err)
		}
	}

	t.tasksToWriteToDB = nil
}

// Close flushes the buffered tasks and closes the database.
func (t *SQLiteTraceWriter) Close() error {
	t.Flush()

	if t.DB == nil {
		return nil
	}

	return t.DB.Close()
}

func (t *SQLiteTraceWriter) createDatabase() {
	if t.dbName == "" {
		t.dbName = "i2cflash_trace_" + xid.New().String()
	}

	filename := t.FileName()

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Trace is collected in database: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	t.DB = db
}

func (t *SQLiteTraceWriter) createTable() {
	t.mustExecute(`
		create table trace
		(
			task_id    varchar(200) not null,
			parent_id  varchar(200),
			kind       varchar(100),
			what       varchar(100),
			location   varchar(100),
			start_time float        not null,
			end_time   float        default 0,
			steps      text,
			outcome    text
		);
	`)

	t.mustExecute(`
		create index trace_task_id_index
			on trace (task_id);
	`)

	t.mustExecute(`
		create index trace_kind_index
			on trace (kind);
	`)

	t.mustExecute(`
		create index trace_parent_id_index
			on trace (parent_id);
	`)

	t.mustExecute(`
		create index trace_start_time_index
			on trace (start_time);
	`)
}

func (t *SQLiteTraceWriter) prepareStatement() {
	stmt, err := t.Prepare(
		`INSERT INTO trace VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		panic(err)
	}

	t.statement = stmt
}

func (t *SQLiteTraceWriter) mustExecute(query string) sql.Result {
	res, err := t.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to execute: %s\n", query)
		panic(err)
	}

	return res
}

func seconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}

	return float64(t.UnixNano()) / 1e9
}

func outcome(detail interface{}) string {
	switch d := detail.(type) {
	case nil:
		return ""
	case error:
		return d.Error()
	case fmt.Stringer:
		return d.String()
	default:
		return fmt.Sprintf("%v", d)
	}
}
