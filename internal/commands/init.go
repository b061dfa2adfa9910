package commands

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"

	"github.com/okra-platform/dtogen/internal/codegen"
	"github.com/okra-platform/dtogen/internal/config"
	"github.com/okra-platform/dtogen/internal/errors"
)

//go:embed templates/*
var templatesFS embed.FS

// sampleManifest is written for manifest projects.
const sampleManifest = "shop.dtogen.yaml"

var projectNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

type InitOptions struct {
	ProjectName string
	SourceKind  string
	Language    string
	OutputDir   string
}

type FileSystem interface {
	Stat(name string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	WriteFile(name string, data []byte, perm os.FileMode) error
}

type osFileSystem struct{}

func (fs *osFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (fs *osFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (fs *osFileSystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

type InitCommand struct {
	dir         string
	out         io.Writer
	filesystem  FileSystem
	templatesFS fs.FS
	// For testing: if set, skip prompting
	testOptions *InitOptions
}

func NewInitCommand(dir string, out io.Writer) *InitCommand {
	return &InitCommand{
		dir:         dir,
		out:         out,
		filesystem:  &osFileSystem{},
		templatesFS: templatesFS,
	}
}

// Init writes a starter dtogen.yaml into the working directory.
func (c *Controller) Init(ctx context.Context) error {
	dir, err := c.dir()
	if err != nil {
		return err
	}
	return NewInitCommand(dir, c.out()).Run(ctx)
}

func (ic *InitCommand) Run(ctx context.Context) error {
	return ic.RunWithOptions(ctx)
}

func (ic *InitCommand) RunWithOptions(ctx context.Context, opts ...tea.ProgramOption) error {
	configPath := filepath.Join(ic.dir, config.FileNames[0])
	if _, err := ic.filesystem.Stat(configPath); err == nil {
		return errors.Configurationf("%s already exists", configPath)
	}

	var options *InitOptions
	var err error

	if ic.testOptions != nil {
		options = ic.testOptions
	} else {
		options, err = ic.promptInitOptions(opts...)
		if err != nil {
			return errors.Wrap(err, "failed to get init options")
		}
	}
	if err := validateProjectName(options.ProjectName); err != nil {
		return err
	}

	data, err := yaml.Marshal(starterConfig(options))
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}
	if err := ic.filesystem.WriteFile(configPath, data, 0644); err != nil {
		return errors.WrapIO(err, "failed to write %s", configPath)
	}

	if options.SourceKind == config.SourceManifest {
		if err := ic.writeSample(); err != nil {
			return err
		}
	}

	fmt.Fprintln(ic.out, pterm.Success.Sprintf("created %s for %s, run dtogen generate next", config.FileNames[0], options.ProjectName))
	return nil
}

func validateProjectName(s string) error {
	if s == "" {
		return errors.Configurationf("project name cannot be empty")
	}
	if !projectNamePattern.MatchString(s) {
		return errors.Configurationf("project name %q must start with a letter and contain only letters, digits, '-' and '_'", s)
	}
	return nil
}

// starterDoc is the dtogen.yaml written by init.
type starterDoc struct {
	Name    string          `yaml:"name"`
	Source  starterSource   `yaml:"source"`
	Targets []starterTarget `yaml:"targets"`
}

type starterSource struct {
	Kind  string   `yaml:"kind"`
	Paths []string `yaml:"paths"`
}

type starterTarget struct {
	Name     string   `yaml:"name"`
	Language string   `yaml:"language"`
	Paths    []string `yaml:"paths"`
	Package  string   `yaml:"package,omitempty"`
}

func starterConfig(o *InitOptions) starterDoc {
	source := "api"
	switch o.SourceKind {
	case config.SourceGraphQL:
		source = "api/schema.graphql"
	case config.SourceGo:
		source = "./..."
	case config.SourceProto:
		source = "api.pb.desc"
	}
	out := o.OutputDir
	if out == "" {
		out = "generated"
	}
	target := starterTarget{Name: o.Language, Language: o.Language, Paths: []string{out}}
	if o.Language != "typescript" {
		target.Package = strings.ReplaceAll(strings.ToLower(o.ProjectName), "-", "_")
	}
	return starterDoc{
		Name:    o.ProjectName,
		Source:  starterSource{Kind: o.SourceKind, Paths: []string{source}},
		Targets: []starterTarget{target},
	}
}

func (ic *InitCommand) writeSample() error {
	data, err := fs.ReadFile(ic.templatesFS, "templates/"+sampleManifest)
	if err != nil {
		return errors.WrapIO(err, "failed to read sample manifest")
	}
	dir := filepath.Join(ic.dir, "api")
	if err := ic.filesystem.MkdirAll(dir, 0755); err != nil {
		return errors.WrapIO(err, "failed to create %s", dir)
	}
	path := filepath.Join(dir, sampleManifest)
	if _, err := ic.filesystem.Stat(path); err == nil {
		return nil
	}
	if err := ic.filesystem.WriteFile(path, data, 0644); err != nil {
		return errors.WrapIO(err, "failed to write %s", path)
	}
	return nil
}

func (ic *InitCommand) promptInitOptions(opts ...tea.ProgramOption) (*InitOptions, error) {
	options := &InitOptions{
		SourceKind: config.SourceManifest,
		Language:   "typescript",
		OutputDir:  "generated",
	}

	form := ic.createInitForm(options)

	if len(opts) > 0 {
		// For testing: run with provided options
		program := tea.NewProgram(form, opts...)
		if _, err := program.Run(); err != nil {
			return nil, err
		}
	} else {
		if err := form.Run(); err != nil {
			return nil, err
		}
	}
	return options, nil
}

func (ic *InitCommand) createInitForm(o *InitOptions) *huh.Form {
	var languages []huh.Option[string]
	for _, l := range codegen.DefaultRegistry.Languages() {
		languages = append(languages, huh.NewOption(l, l))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project name").
				Description("Name of the generated API surface").
				Value(&o.ProjectName).
				Validate(validateProjectName),

			huh.NewSelect[string]().
				Title("Source").
				Description("Where the declarations come from").
				Options(
					huh.NewOption("YAML manifest", config.SourceManifest),
					huh.NewOption("GraphQL SDL", config.SourceGraphQL),
					huh.NewOption("Go package", config.SourceGo),
					huh.NewOption("Protobuf descriptor set", config.SourceProto),
				).
				Value(&o.SourceKind),

			huh.NewSelect[string]().
				Title("Target language").
				Options(languages...).
				Value(&o.Language),

			huh.NewInput().
				Title("Output directory").
				Value(&o.OutputDir),
		),
	)
}
