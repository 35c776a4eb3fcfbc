// Command btreedb is the interactive shell: a chzyer/readline prompt
// loop over the B+tree-backed table, rendering SELECT results with
// olekukonko/tablewriter and supporting the usual toy-database
// meta-commands alongside INSERT/SELECT/UPDATE/DELETE and the
// transaction verbs.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"btreedb/internal/btree"
	"btreedb/internal/config"
	"btreedb/internal/dblog"
	"btreedb/internal/exec"
	"btreedb/internal/node"
	"btreedb/internal/pager"
	"btreedb/internal/stats"
	"btreedb/internal/txn"

	"github.com/chzyer/readline"
	"github.com/olekukonko/tablewriter"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: btreedb <database file>")
		os.Exit(1)
	}
	path := os.Args[1]

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	dblog.Init(cfg.LogLevel)
	defer dblog.Sync()

	p, err := pager.OpenWithLimit(path, uint32(cfg.TableMaxPages))
	if err != nil {
		fmt.Fprintln(os.Stderr, "open database:", err)
		os.Exit(1)
	}

	st := stats.New()
	if p.NumPages() > 0 {
		page0, err := p.Get(0)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read page 0:", err)
			os.Exit(1)
		}
		if loaded, freelist, ok := stats.LoadTrailer(page0.Data[:]); ok {
			st = loaded
			p.RestoreFreelist(freelist)
		}
	}

	txm := txn.NewManager(p)
	tree, err := btree.Open(txm)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open tree:", err)
		os.Exit(1)
	}
	executor := exec.New(tree, txm, st)

	rl, err := readline.New("db > ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "init readline:", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			break
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "read input:", err)
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if !handleMeta(line, tree, st) {
				break
			}
			continue
		}
		if strings.EqualFold(line, "analyze") {
			printCardinality(st)
			continue
		}

		runStatement(executor, line)
	}

	if err := shutdown(p, txm, st); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
		os.Exit(1)
	}
}

func runStatement(executor *exec.Executor, line string) {
	stmt, err := exec.Prepare(line)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	res, err := executor.Execute(stmt)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	if stmt.Type == exec.StmtSelect {
		printRows(res.Rows)
		return
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	}
}

func printRows(rows []node.Row) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"id", "username", "email"})
	for _, r := range rows {
		table.Append([]string{fmt.Sprintf("%d", r.ID), r.Username, r.Email})
	}
	table.Render()
}

func handleMeta(line string, tree *btree.Tree, st *stats.Statistics) bool {
	switch strings.ToLower(line) {
	case ".exit":
		return false
	case ".btree":
		out, err := tree.Print()
		if err != nil {
			fmt.Println("Error:", err)
			return true
		}
		fmt.Print(out)
	case ".constants":
		printConstants()
	case ".stats":
		printStats(st)
	case ".analyze":
		printCardinality(st)
	default:
		fmt.Println("Error: unrecognized command", line)
	}
	return true
}

func printConstants() {
	fmt.Println("Constants:")
	fmt.Printf("ROW_SIZE: %d\n", config.RowSize)
	fmt.Printf("LEAF_NODE_MAX_CELLS: %d\n", node.LeafMaxCells)
	fmt.Printf("INTERNAL_NODE_MAX_CELLS: %d\n", node.InternalMaxCells)
}

func printStats(st *stats.Statistics) {
	fmt.Printf("total_rows: %d\n", st.TotalRows)
	if st.Valid {
		fmt.Printf("id_min: %d\n", st.IDMin)
		fmt.Printf("id_max: %d\n", st.IDMax)
	}
	printCardinality(st)
}

func printCardinality(st *stats.Statistics) {
	fmt.Printf("id_card: %d\n", st.IDCardinality())
	fmt.Printf("username_card: %d\n", st.UsernameCardinality())
	fmt.Printf("email_card: %d\n", st.EmailCardinality())
}

// shutdown force-commits any transaction left open, snapshots
// statistics and the freelist into page 0's trailer, and flushes.
func shutdown(p *pager.Pager, txm *txn.Manager, st *stats.Statistics) error {
	if err := txm.CloseForced(); err != nil {
		return err
	}
	page0, err := p.Get(0)
	if err != nil {
		return err
	}
	st.PersistTrailer(page0.Data[:], p.FreelistSnapshot())
	page0.Dirty = true
	return p.Close()
}
