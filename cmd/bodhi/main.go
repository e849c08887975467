// Command bodhi is the CLI tool for BodhiCanon.
// It provides commands for rendering scrolls, browsing the catalog,
// exporting Obsidian vaults, and serving the reader API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/xlab/treeprint"
	"gopkg.in/yaml.v3"

	"github.com/fayinlab/bodhicanon/core/archive"
	"github.com/fayinlab/bodhicanon/core/canon"
	cerrors "github.com/fayinlab/bodhicanon/core/errors"
	"github.com/fayinlab/bodhicanon/core/gaiji"
	"github.com/fayinlab/bodhicanon/core/nav"
	"github.com/fayinlab/bodhicanon/core/render"
	"github.com/fayinlab/bodhicanon/core/tei"
	"github.com/fayinlab/bodhicanon/internal/config"
	"github.com/fayinlab/bodhicanon/internal/logging"
	"github.com/fayinlab/bodhicanon/internal/server"
	"github.com/fayinlab/bodhicanon/internal/userdata"
	"github.com/fayinlab/bodhicanon/internal/vault"
)

const version = "0.1.0"

// CLI defines the command-line interface for bodhi.
var CLI struct {
	// Global flags
	ConfigFile string `name:"config" short:"c" help:"Configuration file path" default:"bodhi.yml" type:"path"`
	Verbose    bool   `short:"v" help:"Force debug logging"`

	// Command groups (noun-first organization)
	Render  RenderCmd   `cmd:"" help:"Render one scroll to HTML, Markdown, or plain text"`
	Nav     NavGroup    `cmd:"" help:"Catalog operations (tree, info, search, resolve)"`
	Export  ExportGroup `cmd:"" help:"Batch export operations"`
	Serve   ServeCmd    `cmd:"" help:"Start the reader API server"`
	Gaiji   GaijiCmd    `cmd:"" help:"Resolve a rare-character code"`
	Config  ConfigGroup `cmd:"" help:"Configuration management"`
	Version VersionCmd  `cmd:"" help:"Print version information"`
}

// RenderCmd renders a single scroll of a work.
type RenderCmd struct {
	Work   string `arg:"" help:"Work id, e.g. T0001 or T01n0001"`
	Scroll int    `arg:"" optional:"" default:"1" help:"Scroll number within the work"`
	Format string `short:"f" enum:"html,markdown,text" default:"html" help:"Output format (html, markdown, text)"`
	Out    string `short:"o" type:"path" help:"Write output to a file instead of stdout"`
}

func (c *RenderCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	path, err := idx.ResolveScrollPath(c.Work, c.Scroll)
	if err != nil {
		return err
	}
	doc, err := tei.ParseFile(path)
	if err != nil {
		return err
	}
	body, err := doc.Body()
	if err != nil {
		return err
	}

	renderer := render.New(render.Options{Gaiji: openGaiji(cfg)})
	var out string
	switch c.Format {
	case "markdown":
		out, err = renderer.RenderMarkdown(body)
	case "text":
		out, err = renderer.RenderText(body)
	default:
		out, err = renderer.RenderHTML(body)
	}
	if err != nil {
		return err
	}

	if c.Out != "" {
		if err := os.WriteFile(c.Out, []byte(out), 0644); err != nil {
			return cerrors.NewIO("write", c.Out, err)
		}
		fmt.Printf("Wrote %s (%d bytes)\n", c.Out, len(out))
		return nil
	}
	fmt.Println(out)
	return nil
}

// NavGroup contains catalog navigation commands.
type NavGroup struct {
	Tree    NavTreeCmd    `cmd:"" help:"Print the canon or category tree"`
	Info    NavInfoCmd    `cmd:"" help:"Show catalog details for one work"`
	Search  NavSearchCmd  `cmd:"" help:"Search the catalog by title or id"`
	Resolve NavResolveCmd `cmd:"" help:"Map a scroll address to its source file"`
}

// NavTreeCmd prints a navigation tree.
type NavTreeCmd struct {
	Kind  string `arg:"" optional:"" enum:"canon,bulei" default:"canon" help:"Tree to print: canon (volume order) or bulei (doctrinal category)"`
	Depth int    `short:"d" help:"Limit the printed depth (0 prints everything)"`
}

func (c *NavTreeCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	nodes := idx.CanonTree()
	if c.Kind == "bulei" {
		nodes = idx.CategoryTree()
	}
	if len(nodes) == 0 {
		return cerrors.NewNotFound("navigation tree", c.Kind)
	}
	tree := treeprint.New()
	addTreeNodes(tree, nodes, 1, c.Depth)
	fmt.Print(tree.String())
	return nil
}

// addTreeNodes copies navigation nodes into a printable tree. When maxDepth
// is positive, deeper branches collapse to a single node with a child count.
func addTreeNodes(branch treeprint.Tree, nodes []*nav.Node, depth, maxDepth int) {
	for _, n := range nodes {
		label := n.Title
		if n.WorkID != "" {
			label = n.WorkID + " " + n.Title
		}
		switch {
		case len(n.Children) == 0:
			branch.AddNode(label)
		case maxDepth > 0 && depth >= maxDepth:
			branch.AddNode(fmt.Sprintf("%s (%d)", label, len(n.Children)))
		default:
			addTreeNodes(branch.AddBranch(label), n.Children, depth+1, maxDepth)
		}
	}
}

// NavInfoCmd shows catalog details for a single work.
type NavInfoCmd struct {
	Work string `arg:"" help:"Work id, e.g. T0001"`
}

func (c *NavInfoCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	w, ok := idx.Work(c.Work)
	if !ok {
		return cerrors.NewNotFound("work", c.Work)
	}
	fmt.Printf("ID:       %s\n", w.ID)
	fmt.Printf("Title:    %s\n", w.Title)
	if w.Author != "" {
		fmt.Printf("Author:   %s\n", w.Author)
	}
	fmt.Printf("Canon:    %s (%s)\n", w.Canon, idx.CanonName(w.Canon))
	if w.Category != "" {
		fmt.Printf("Category: %s\n", w.Category)
	}
	fmt.Printf("Scrolls:  %d\n", idx.ScrollCount(w.ID))
	return nil
}

// NavSearchCmd searches the catalog.
type NavSearchCmd struct {
	Query string `arg:"" help:"Title substring or work id prefix"`
	Limit int    `default:"20" help:"Maximum number of matches to print"`
}

func (c *NavSearchCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	works := idx.Search(c.Query, c.Limit)
	if len(works) == 0 {
		fmt.Printf("No works match %q\n", c.Query)
		return nil
	}
	for _, w := range works {
		line := fmt.Sprintf("%-10s %s", w.ID, w.Title)
		if w.Author != "" {
			line += " (" + w.Author + ")"
		}
		fmt.Println(line)
	}
	return nil
}

// NavResolveCmd maps a scroll address to the XML file that holds it.
type NavResolveCmd struct {
	Address string `arg:"" help:"Scroll address, e.g. T0001 or T0001.3"`
}

func (c *NavResolveCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	addr, err := canon.ParseAddress(c.Address)
	if err != nil {
		return cerrors.NewValidation("address", err.Error())
	}
	scroll := addr.Scroll
	if scroll == 0 {
		scroll = 1
	}
	path, err := idx.ResolveScrollPath(addr.Work.String(), scroll)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// ExportGroup contains batch export commands.
type ExportGroup struct {
	Vault ExportVaultCmd `cmd:"" help:"Export works as an Obsidian Markdown vault"`
}

// ExportVaultCmd converts Bookcase works into a linked Markdown vault.
type ExportVaultCmd struct {
	Output     string `short:"o" type:"path" help:"Vault output directory (defaults to export.output from the config)"`
	Canon      string `help:"Restrict the export to one canon code, e.g. T"`
	Work       string `help:"Export a single work"`
	Limit      int    `help:"Stop after this many works (0 exports everything)"`
	Workers    int    `help:"Concurrent conversions (defaults to export.workers from the config)"`
	Archive    bool   `help:"Pack the finished vault into a compressed tar archive"`
	NoProgress bool   `help:"Disable the progress bar"`
}

func (c *ExportVaultCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}

	output := c.Output
	if output == "" {
		output = cfg.Export.Output
	}
	workers := c.Workers
	if workers == 0 {
		workers = cfg.Export.Workers
	}

	exporter := vault.New(idx, openGaiji(cfg))
	report, err := exporter.Export(vault.Options{
		Output:   output,
		Canon:    c.Canon,
		Work:     c.Work,
		Limit:    c.Limit,
		Workers:  workers,
		Progress: !c.NoProgress,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Exported %d works to %s (%d files)\n", report.Converted, output, report.Files)
	if report.Skipped > 0 {
		fmt.Printf("Skipped %d works:\n", report.Skipped)
		for _, f := range report.Failures {
			fmt.Printf("  %s: %s\n", f.Work, f.Reason)
		}
	}

	if c.Archive {
		opts := archive.DefaultPackOptions()
		if cfg.Export.Compression != "" {
			opts.Compression = archive.Compression(cfg.Export.Compression)
		}
		archivePath := output + archiveExt(opts.Compression)
		if err := archive.Pack(output, archivePath, opts); err != nil {
			return err
		}
		fmt.Printf("Packed %s\n", archivePath)
	}
	return nil
}

func archiveExt(c archive.Compression) string {
	if c == archive.CompressionGzip {
		return ".tar.gz"
	}
	return ".tar.xz"
}

// ServeCmd starts the reader API server.
type ServeCmd struct {
	Host string `help:"Bind address (overrides server.host from the config)"`
	Port int    `help:"Listen port (overrides server.port from the config)"`
}

func (c *ServeCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	idx, err := openIndex(cfg)
	if err != nil {
		return err
	}
	store, err := userdata.Open(filepath.Join(cfg.Server.Userdata, "userdata.db"))
	if err != nil {
		return err
	}
	defer store.Close()

	srv := server.New(server.Config{
		Host:      cfg.Server.Host,
		Port:      cfg.Server.Port,
		Origins:   cfg.Server.Origins,
		CacheSize: cfg.Server.Cache,
		Version:   version,
	}, idx, openGaiji(cfg), store)

	// Graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		logging.Info("server_shutdown", "reason", "signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("server_shutdown_error", "error", err.Error())
		}
	}()

	if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// GaijiCmd resolves one rare-character code against the configured table.
type GaijiCmd struct {
	Code string `arg:"" help:"Rare-character code, e.g. CB00178 or #CB00178"`
}

func (c *GaijiCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path := cfg.Bookcase.GaijiTable()
	if path == "" {
		return cerrors.NewValidation("bookcase.gaiji", "no gaiji table configured and none found next to the Bookcase")
	}
	res, err := gaiji.Load(path)
	if err != nil {
		return err
	}
	d := res.Resolve(c.Code)
	fmt.Printf("Code:  %s\n", d.Code)
	fmt.Printf("Text:  %s\n", d.Text)
	if d.IsImage() {
		fmt.Printf("Image: %s\n", d.ImagePath)
	}
	return nil
}

// ConfigGroup contains configuration management commands.
type ConfigGroup struct {
	Init ConfigInitCmd `cmd:"" help:"Write a configuration file with the default settings"`
	Show ConfigShowCmd `cmd:"" help:"Print the effective configuration as YAML"`
}

// ConfigInitCmd writes a starter configuration file.
type ConfigInitCmd struct {
	Force bool `short:"f" help:"Overwrite an existing file"`
}

func (c *ConfigInitCmd) Run() error {
	if _, err := os.Stat(CLI.ConfigFile); err == nil && !c.Force {
		return cerrors.NewValidation("config", fmt.Sprintf("%s already exists (use --force to overwrite)", CLI.ConfigFile))
	}
	if err := config.DefaultConfig().Save(CLI.ConfigFile); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", CLI.ConfigFile)
	return nil
}

// ConfigShowCmd prints the configuration after file, environment, and flag
// overrides have been applied.
type ConfigShowCmd struct{}

func (c *ConfigShowCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (v *VersionCmd) Run() error {
	fmt.Printf("bodhi version %s\n", version)
	return nil
}

// loadConfig reads the file named by --config, applies global flag
// overrides, validates the result, and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(CLI.ConfigFile)
	if err != nil {
		return nil, err
	}
	if CLI.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.InitLogger(logLevel(cfg.Log.Level), logFormat(cfg.Log.Format))
	return cfg, nil
}

// logLevel maps the validated config string to a logging level.
func logLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func logFormat(s string) logging.Format {
	if s == "json" {
		return logging.FormatJSON
	}
	return logging.FormatText
}

// openIndex builds the navigation index over the configured Bookcase.
func openIndex(cfg *config.Config) (*nav.Index, error) {
	return nav.Build(cfg.Bookcase.Dir, nav.Options{})
}

// openGaiji loads the configured gaiji table. A missing or unreadable table
// degrades to an empty resolver so rendering still works, with rare
// characters shown in their bracketed code form.
func openGaiji(cfg *config.Config) *gaiji.Resolver {
	path := cfg.Bookcase.GaijiTable()
	if path == "" {
		return gaiji.New(nil)
	}
	res, err := gaiji.Load(path)
	if err != nil {
		logging.Warn("gaiji_table_unavailable", "path", path, "error", err.Error())
		return gaiji.New(nil)
	}
	return res
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("bodhi"),
		kong.Description("BodhiCanon command-line tools for the CBETA Buddhist canon"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
