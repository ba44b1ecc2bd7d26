// Command platecheck drives the annotation service from the terminal:
// import preliminary result strings, inspect wells, report statistics,
// and save or reload session documents.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"platecore/internal/blob"
	"platecore/internal/core"
	"platecore/internal/dataset"
	"platecore/internal/infra/persistence/sqlite"
	"platecore/internal/resultcode"
	"platecore/pkg/domain"
	"platecore/pkg/grid"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func usage(stderr io.Writer) {
	fmt.Fprintln(stderr, `usage: platecheck <command> [flags]

commands:
  decode    validate a preliminary result string and print its tally
  import    decode a preliminary result string into a session file
  well      print the annotation at one well
  stats     print statistics for a specimen or the whole session
  export    re-encode a specimen to the 120-character format
  save      write the session to a document file
  load      inspect a document file
  training  summarize the confirmed subset per training bucket`)
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "decode":
		err = runDecode(rest, stdout)
	case "import":
		err = runImport(rest, stdout)
	case "well":
		err = runWell(rest, stdout)
	case "stats":
		err = runStats(rest, stdout)
	case "export":
		err = runExport(rest, stdout)
	case "save":
		err = runSave(rest, stdout)
	case "load":
		err = runLoad(rest, stdout)
	case "training":
		err = runTraining(rest, stdout)
	default:
		usage(stderr)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "platecheck %s: %v\n", cmd, err)
		return 1
	}
	return 0
}

type session struct {
	svc   *core.Service
	store *sqlite.Store
}

func openSession(ctx context.Context, dbPath string, startIndex int) (*session, error) {
	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		return nil, err
	}
	cfg := grid.DefaultConfig()
	if startIndex > 0 {
		cfg.StartIndex = startIndex
	}
	layout, err := grid.NewLayout(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	var opts []core.Option
	if os.Getenv("PLATECORE_BLOB_DRIVER") != "" {
		archive, err := blob.Open(ctx)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		opts = append(opts, core.WithArchive(blob.NewArchive(archive)))
	}
	return &session{svc: core.NewService(store, layout, opts...), store: store}, nil
}

func (s *session) close() { _ = s.store.Close() }

func commonFlags(fs *flag.FlagSet) (db *string, start *int) {
	db = fs.String("db", "platecore.db", "session database path")
	start = fs.Int("start", 0, "lowest annotatable well index (default from layout)")
	return
}

func runDecode(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	result := fs.String("result", "", "120-character result string; - reads stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw, err := readResult(*result)
	if err != nil {
		return err
	}
	levels, err := resultcode.Decode(raw)
	if err != nil {
		return err
	}
	return printJSON(stdout, resultcode.Summarize(levels))
}

func readResult(arg string) (string, error) {
	if arg != "" && arg != "-" {
		return arg, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func runImport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	db, start := commonFlags(fs)
	specimen := fs.String("specimen", "", "specimen id (required)")
	microbe := fs.String("microbe", string(domain.MicrobeBacteria), "microbe type: bacteria|fungi")
	result := fs.String("result", "", "120-character result string; - reads stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *specimen == "" {
		return fmt.Errorf("-specimen is required")
	}
	raw, err := readResult(*result)
	if err != nil {
		return err
	}
	ctx := context.Background()
	sess, err := openSession(ctx, *db, *start)
	if err != nil {
		return err
	}
	defer sess.close()

	applied, err := sess.svc.ImportPreliminary(ctx, *specimen, domain.MicrobeType(strings.ToLower(*microbe)), raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "imported %d wells for %s\n", applied, *specimen)
	return nil
}

func runWell(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("well", flag.ContinueOnError)
	db, start := commonFlags(fs)
	specimen := fs.String("specimen", "", "specimen id (required)")
	well := fs.Int("well", 0, "well index 1-120 (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *specimen == "" || *well == 0 {
		return fmt.Errorf("-specimen and -well are required")
	}
	ctx := context.Background()
	sess, err := openSession(ctx, *db, *start)
	if err != nil {
		return err
	}
	defer sess.close()

	rec, err := sess.svc.Record(ctx, *specimen, *well)
	if err != nil {
		return err
	}
	return printJSON(stdout, rec)
}

func runStats(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	db, start := commonFlags(fs)
	specimen := fs.String("specimen", "", "specimen id; empty means all")
	expected := fs.Int("expected", 0, "expected reviewable well total; 0 derives from specimens")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx := context.Background()
	sess, err := openSession(ctx, *db, *start)
	if err != nil {
		return err
	}
	defer sess.close()

	stats, err := sess.svc.Statistics(ctx, *specimen, *expected)
	if err != nil {
		return err
	}
	return printJSON(stdout, stats)
}

func runExport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	db, start := commonFlags(fs)
	specimen := fs.String("specimen", "", "specimen id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *specimen == "" {
		return fmt.Errorf("-specimen is required")
	}
	ctx := context.Background()
	sess, err := openSession(ctx, *db, *start)
	if err != nil {
		return err
	}
	defer sess.close()

	encoded, err := sess.svc.ExportPreliminary(ctx, *specimen)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, encoded)
	return nil
}

func runSave(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	db, start := commonFlags(fs)
	out := fs.String("out", "session.json", "output document path")
	name := fs.String("name", "session", "document name")
	desc := fs.String("desc", "", "document description")
	confirmedOnly := fs.Bool("confirmed-only", false, "save only confirmed enhanced annotations")
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx := context.Background()
	sess, err := openSession(ctx, *db, *start)
	if err != nil {
		return err
	}
	defer sess.close()

	mode := dataset.SaveAll
	if *confirmedOnly {
		mode = dataset.SaveConfirmedOnly
	}
	data, err := sess.svc.SaveDocument(ctx, *name, *desc, mode)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return domain.PersistenceError{Op: "write document", Err: err}
	}
	fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", *out, len(data))
	return nil
}

func runLoad(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	db, start := commonFlags(fs)
	in := fs.String("in", "session.json", "document path to load")
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := os.ReadFile(*in)
	if err != nil {
		return domain.PersistenceError{Op: "read document", Err: err}
	}
	ctx := context.Background()
	sess, err := openSession(ctx, *db, *start)
	if err != nil {
		return err
	}
	defer sess.close()

	doc, err := sess.svc.LoadDocument(ctx, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "loaded %q: %d of %d annotations, save_mode=%s\n",
		doc.Name, doc.SavedAnnotations, doc.TotalAnnotations, doc.SaveMode)
	return nil
}

func runTraining(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("training", flag.ContinueOnError)
	db, start := commonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	ctx := context.Background()
	sess, err := openSession(ctx, *db, *start)
	if err != nil {
		return err
	}
	defer sess.close()

	summary, err := sess.svc.TrainingExport(ctx)
	if err != nil {
		return err
	}
	return printJSON(stdout, summary)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
