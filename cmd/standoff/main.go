// Command standoff converts inline XML markup into plain-text resources with
// stand-off annotations.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/FocuswithJustin/standoff/core/convert"
	"github.com/FocuswithJustin/standoff/core/errors"
	"github.com/FocuswithJustin/standoff/core/mapping"
	"github.com/FocuswithJustin/standoff/core/store"
	"github.com/FocuswithJustin/standoff/internal/fileutil"
	"github.com/FocuswithJustin/standoff/internal/logging"
	"github.com/FocuswithJustin/standoff/internal/validation"
)

const version = "0.4.0"

var stdout io.Writer = os.Stdout

// Globals are flags shared by all commands.
type Globals struct {
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Log level"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Log format"`
}

// CLI defines the command-line interface for standoff.
var CLI struct {
	Globals

	Convert ConvertCmd `cmd:"" help:"Convert XML or HTML documents into text and annotations"`
	Check   CheckCmd   `cmd:"" help:"Validate a mapping configuration and list its resolved rules"`
	Info    InfoCmd    `cmd:"" help:"Summarize an annotation store"`
	View    ViewCmd    `cmd:"" help:"Show resource text with annotated spans highlighted"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// ConvertCmd converts input groups into one annotation store.
type ConvertCmd struct {
	Config        string   `short:"c" required:"" help:"Mapping configuration (TOML, YAML or JSON)" type:"existingfile"`
	Out           string   `short:"o" help:"Write the store as JSON (.xz or .gz compresses)" type:"path"`
	SQLite        string   `name:"sqlite" help:"Write the store as an SQLite database" type:"path"`
	TextDir       string   `name:"text-dir" help:"Write each resource text as <id>.txt into this directory" type:"path"`
	InputFile     []string `name:"inputfile" short:"f" help:"Input file, converted into its own resource (repeatable)" type:"existingfile"`
	InputFileList string   `name:"inputfilelist" short:"l" help:"File with one resource per line; tab-separated files on a line are concatenated" type:"existingfile"`
	Inputs        []string `arg:"" optional:"" help:"Input files, one resource each" type:"existingfile"`
	Provenance    bool     `help:"Record source file, node path and rule on every annotation"`
	IDPrefix      string   `name:"id-prefix" help:"Prefix for generated identifiers; {resource} is replaced by the resource id"`
	IgnoreErrors  bool     `name:"ignore-errors" help:"Skip inputs that fail instead of aborting"`
	Jobs          int      `short:"j" default:"1" help:"Number of resources converted in parallel (0 uses all CPUs)"`
	HTML          bool     `name:"html" help:"Parse all inputs as HTML"`
	Debug         bool     `help:"Dump the merged rules and produced annotations"`
	StoreID       string   `name:"store-id" default:"standoff" help:"Identifier of the produced store"`
}

func (c *ConvertCmd) Run(g *Globals) error {
	if c.Out == "" && c.SQLite == "" && c.TextDir == "" {
		return errors.NewValidation("output", "nothing to write: use --out, --sqlite or --text-dir")
	}
	for _, p := range []string{c.Out, c.SQLite, c.TextDir} {
		if p == "" {
			continue
		}
		if err := validation.ValidatePath(p); err != nil {
			return errors.NewValidation("output", fmt.Sprintf("%s: %v", p, err))
		}
	}
	groups, err := c.groups()
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return errors.NewValidation("inputs", "no input files given")
	}

	cfg, err := mapping.LoadFile(c.Config)
	if err != nil {
		return err
	}
	conv, err := convert.New(cfg, convert.Options{
		Provenance: c.Provenance,
		IDPrefix:   c.IDPrefix,
		HTML:       c.HTML,
		Debug:      c.Debug,
	})
	if err != nil {
		return err
	}
	if c.Debug {
		cfg.Dump(os.Stderr)
	}

	s := store.New(c.StoreID)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logging.WithRunID(ctx, s.RunID)

	outcomes := conv.ConvertGroups(ctx, groups, c.Jobs)
	n, err := convert.Commit(ctx, s, outcomes, c.IgnoreErrors)
	if err != nil {
		return err
	}
	logging.LoggerFromContext(ctx).Info("conversion finished",
		"resources", n,
		"skipped", len(groups)-n,
		"annotations", len(s.Annotations))

	var stage fileutil.Stage
	if err := c.writeOutputs(ctx, s, &stage); err != nil {
		stage.Abort()
		return err
	}
	return stage.Commit()
}

// writeOutputs builds every requested output under a staged path. Nothing
// reaches its final location until all of them are written.
func (c *ConvertCmd) writeOutputs(ctx context.Context, s *store.Store, stage *fileutil.Stage) error {
	if c.Out != "" {
		if err := s.Save(stage.Path(c.Out)); err != nil {
			return err
		}
	}
	if c.SQLite != "" {
		if err := s.SaveSQLite(ctx, stage.Path(c.SQLite)); err != nil {
			return err
		}
	}
	if c.TextDir != "" {
		dir := stage.Path(c.TextDir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.NewIO("create", c.TextDir, err)
		}
		if _, err := s.WriteTexts(dir); err != nil {
			return err
		}
	}
	return nil
}

// groups returns the input groups: each --inputfile and positional argument
// on its own, then one group per line of --inputfilelist.
func (c *ConvertCmd) groups() ([][]string, error) {
	var groups [][]string
	for _, f := range append(append([]string{}, c.InputFile...), c.Inputs...) {
		groups = append(groups, []string{f})
	}
	if c.InputFileList != "" {
		f, err := os.Open(c.InputFileList)
		if err != nil {
			return nil, errors.NewIO("open", c.InputFileList, err)
		}
		defer f.Close()
		listed, err := readInputList(f)
		if err != nil {
			return nil, errors.NewIO("read", c.InputFileList, err)
		}
		groups = append(groups, listed...)
	}
	return groups, nil
}

// readInputList parses an input list: one group per line, files separated
// by tabs. Blank lines and lines starting with # are ignored.
func readInputList(r io.Reader) ([][]string, error) {
	var groups [][]string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var group []string
		for _, field := range strings.Split(line, "\t") {
			if field = strings.TrimSpace(field); field != "" {
				group = append(group, field)
			}
		}
		groups = append(groups, group)
	}
	return groups, sc.Err()
}

// CheckCmd validates a mapping configuration.
type CheckCmd struct {
	Config string `arg:"" help:"Mapping configuration (TOML, YAML or JSON)" type:"existingfile"`
	Dump   bool   `help:"Dump the merged rules"`
}

func (c *CheckCmd) Run() error {
	cfg, err := mapping.LoadFile(c.Config)
	if err != nil {
		return err
	}
	if err := cfg.Prepare(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: OK\n", c.Config)
	fmt.Fprintf(stdout, "  Whitespace: %s\n", cfg.Whitespace)
	fmt.Fprintf(stdout, "  Default set: %s\n", cfg.DefaultSet)
	prefixes := make([]string, 0, len(cfg.Namespaces))
	for p := range cfg.Namespaces {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)
	for _, p := range prefixes {
		fmt.Fprintf(stdout, "  Namespace %s = %s\n", p, cfg.Namespaces[p])
	}
	fmt.Fprintf(stdout, "  Rules: %d\n", len(cfg.Rules()))
	for _, r := range cfg.Rules() {
		fmt.Fprintf(stdout, "    %3d  %-30s text=%-5t stop=%-5t %s\n",
			r.Index(), r.Path, r.IsText(), r.IsStop(), r.AnnotationKind())
	}
	fmt.Fprintf(stdout, "  Metadata rules: %d\n", len(cfg.Metadata))
	if c.Dump {
		cfg.Dump(stdout)
	}
	return nil
}

// InfoCmd summarizes a store.
type InfoCmd struct {
	Store string `arg:"" help:"Store file written by convert --out" type:"existingfile"`
}

func (c *InfoCmd) Run() error {
	s, err := store.Load(c.Store)
	if err != nil {
		return err
	}
	st := s.Stats()
	fmt.Fprintf(stdout, "Store: %s\n", s.ID)
	fmt.Fprintf(stdout, "  Run ID: %s\n", s.RunID)
	fmt.Fprintf(stdout, "  Resources: %d\n", st.Resources)
	fmt.Fprintf(stdout, "  Annotations: %d\n", st.Annotations)
	fmt.Fprintf(stdout, "  Data: %d (%d sets, %d keys)\n", st.Data, len(st.Sets), len(st.Keys))
	for _, r := range s.Resources {
		fmt.Fprintf(stdout, "  %s: %d characters, %d annotations\n", r.ID, r.Len(), len(s.AnnotationsOn(r.ID)))
	}
	return nil
}

// ViewCmd prints resource text with annotated spans highlighted.
type ViewCmd struct {
	Store    string `arg:"" help:"Store file written by convert --out" type:"existingfile"`
	Resource string `short:"r" help:"Only show this resource"`
	NoColor  bool   `name:"no-color" help:"Disable colored output"`
}

func (c *ViewCmd) Run() error {
	if c.NoColor {
		color.NoColor = true
	}
	s, err := store.Load(c.Store)
	if err != nil {
		return err
	}
	if c.Resource != "" {
		if _, err := s.Resource(c.Resource); err != nil {
			return err
		}
	}
	for _, r := range s.Resources {
		if c.Resource != "" && r.ID != c.Resource {
			continue
		}
		renderResource(stdout, s, r)
	}
	return nil
}

var (
	headingColor = color.New(color.Bold)
	spanColor    = color.New(color.FgGreen)
	nestedColor  = color.New(color.FgGreen, color.Bold)
	idColor      = color.New(color.FgBlue)
)

// renderResource writes the text of r, coloring every codepoint covered by a
// text annotation, followed by the list of annotations on r.
func renderResource(w io.Writer, s *store.Store, r *store.Resource) {
	anns := s.AnnotationsOn(r.ID)
	runes := []rune(r.Text)
	depth := make([]int, len(runes)+1)
	for _, a := range anns {
		if a.Target.Kind != store.TextSelector {
			continue
		}
		depth[a.Target.Begin]++
		depth[a.Target.End]--
	}

	headingColor.Fprintf(w, "== %s ==\n", r.ID)
	level := 0
	start := 0
	flush := func(end, lvl int) {
		if end <= start {
			return
		}
		chunk := string(runes[start:end])
		switch {
		case lvl == 0:
			fmt.Fprint(w, chunk)
		case lvl == 1:
			spanColor.Fprint(w, chunk)
		default:
			nestedColor.Fprint(w, chunk)
		}
		start = end
	}
	for i := range runes {
		next := level + depth[i]
		if next != level {
			flush(i, level)
			level = next
		}
	}
	flush(len(runes), level)
	if !strings.HasSuffix(r.Text, "\n") {
		fmt.Fprintln(w)
	}

	for _, a := range anns {
		id := a.ID
		if id == "" {
			id = "-"
		}
		idColor.Fprint(w, id)
		fmt.Fprintf(w, " %s", a.Target)
		for _, d := range a.Data {
			fmt.Fprintf(w, " %s=%v", d.Key, d.Value)
		}
		fmt.Fprintln(w)
	}
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Fprintf(stdout, "standoff version %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("standoff"),
		kong.Description("Convert inline XML markup into stand-off text and annotations"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), logging.ParseFormat(CLI.LogFormat))
	err := ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}
