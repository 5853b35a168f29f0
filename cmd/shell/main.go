// Command shell is a small interactive driver over the storage core, used
// for manual testing: create or select a table, insert rows, fetch a row by
// its tuple id, and scan the table, grounded on the teacher's cmd/client
// readline-based REPL. It has no index commands.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tuannm99/novasql/internal/config"
	"github.com/tuannm99/novasql/internal/engine"
	"github.com/tuannm99/novasql/internal/heap"
	"github.com/tuannm99/novasql/internal/storage"
)

func main() {
	dataDir := flag.String("data", "./novasql-data", "database directory")
	flag.Parse()

	cfg := config.Defaults()
	db, err := engine.Open(*dataDir, cfg)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("close database", "err", err)
		}
	}()

	rl, err := readline.New("novasql> ")
	if err != nil {
		slog.Error("init readline", "err", err)
		os.Exit(1)
	}
	defer rl.Close()

	sh := &shell{db: db}
	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return
		}
		if err != nil {
			slog.Error("readline", "err", err)
			return
		}
		if err := sh.dispatch(strings.TrimSpace(line)); err != nil {
			fmt.Println("error:", err)
		}
	}
}

type shell struct {
	db  *engine.Database
	tbl *heap.Table
}

func (s *shell) dispatch(line string) error {
	if line == "" {
		return nil
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "help":
		s.printHelp()
	case "create-table":
		return s.createTable(fields[1:])
	case "use":
		return s.use(fields[1:])
	case "insert":
		return s.insert(fields[1:])
	case "get":
		return s.get(fields[1:])
	case "scan":
		return s.scan()
	case "tables":
		for _, name := range s.db.Tables() {
			fmt.Println(name)
		}
	case "exit", "quit":
		os.Exit(0)
	default:
		fmt.Println("unknown command, try 'help'")
	}
	return nil
}

func (s *shell) printHelp() {
	fmt.Println(`commands:
  create-table <name>          create a table with schema (id INT64, name TEXT)
  use <name>                   open an existing table
  insert <id> <name>           insert a row into the current table
  get <pageID> <slot>          fetch a row by raw tuple id
  scan                         print every row in the current table
  tables                       list registered tables
  exit`)
}

func demoSchema() storage.Schema {
	return storage.Schema{
		Cols: []storage.Column{
			{Name: "id", Type: storage.ColInt64, Nullable: false},
			{Name: "name", Type: storage.ColText, Nullable: false},
		},
	}
}

func (s *shell) createTable(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: create-table <name>")
	}
	tbl, err := s.db.CreateTable(args[0], demoSchema())
	if err != nil {
		return err
	}
	s.tbl = tbl
	fmt.Println("created and selected table", args[0])
	return nil
}

func (s *shell) use(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: use <name>")
	}
	tbl, err := s.db.OpenTable(args[0])
	if err != nil {
		return err
	}
	s.tbl = tbl
	fmt.Println("selected table", args[0])
	return nil
}

func (s *shell) insert(args []string) error {
	if s.tbl == nil {
		return fmt.Errorf("no table selected, run 'use <name>' first")
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: insert <id> <name>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return err
	}
	tid, err := s.tbl.Insert([]any{id, args[1]})
	if err != nil {
		return err
	}
	fmt.Printf("inserted at page=%d slot=%d\n", tid.PageID, tid.Slot)
	return nil
}

func (s *shell) get(args []string) error {
	if s.tbl == nil {
		return fmt.Errorf("no table selected, run 'use <name>' first")
	}
	if len(args) != 2 {
		return fmt.Errorf("usage: get <pageID> <slot>")
	}
	pid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return err
	}
	slot, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return err
	}
	row, err := s.tbl.Get(heap.TID{PageID: uint32(pid), Slot: uint16(slot)})
	if err != nil {
		return err
	}
	fmt.Println(row)
	return nil
}

func (s *shell) scan() error {
	if s.tbl == nil {
		return fmt.Errorf("no table selected, run 'use <name>' first")
	}
	return s.tbl.Scan(func(tid heap.TID, row []any) error {
		fmt.Printf("[%d:%d] %v\n", tid.PageID, tid.Slot, row)
		return nil
	})
}
