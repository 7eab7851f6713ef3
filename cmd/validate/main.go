package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/story-runtime/pkg/inventory"
	"github.com/jwebster45206/story-runtime/pkg/story"
)

func main() {
	catalogFile := flag.String("catalog", "", "item catalog file (JSON or YAML) to check item references against")
	strict := flag.Bool("strict", false, "treat warnings as errors")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-catalog items.yaml] [-strict] <story.json|story.yaml>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	filename := flag.Arg(0)
	validator := &StoryValidator{strict: *strict}

	if err := validator.validateFile(filename, *catalogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	for _, w := range validator.warnings {
		fmt.Println(w)
	}
	fmt.Println("Story file is valid!")
}

type StoryValidator struct {
	strict   bool
	errors   []string
	warnings []string
}

func (v *StoryValidator) validateFile(filename, catalogFile string) error {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	ext := filepath.Ext(baseName)
	switch ext {
	case ".json", ".yaml", ".yml":
	default:
		return fmt.Errorf("story file must have .json, .yaml or .yml extension: %s", baseName)
	}

	nameWithoutExt := strings.TrimSuffix(baseName, ext)
	if !isValidStoryFilename(nameWithoutExt) {
		return fmt.Errorf("story filename '%s' must be lowercase snake_case (e.g., my_story.json, not my-story.json or MyStory.json)", baseName)
	}

	g, err := story.Load(filename)
	if err != nil {
		return err
	}

	var catalog *inventory.Catalog
	if catalogFile != "" {
		catalog, err = inventory.LoadCatalog(catalogFile)
		if err != nil {
			return fmt.Errorf("failed to load catalog: %w", err)
		}
	}

	v.errors = nil
	v.warnings = nil
	v.validateStory(g, catalog)

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

func (v *StoryValidator) validateStory(g *story.Graph, catalog *inventory.Catalog) {
	report := story.Validate(g, catalog)
	for _, issue := range report.Issues {
		if issue.Severity == story.SeverityError {
			v.addError(issue.String())
		} else {
			v.addWarning(issue.String())
		}
	}

	for _, id := range g.NodeIDs() {
		v.validateIDFormat("node ID", id)
		n := g.Nodes[id]
		for _, c := range n.Choices {
			for _, cond := range c.Conditions {
				if cond.Key != "" && !isValidVariableName(cond.Key) {
					v.addWarning(fmt.Sprintf("node %s: variable name '%s' should be lowercase snake_case", id, cond.Key))
				}
			}
		}
		for _, a := range n.Actions {
			if a.Key != "" && !isValidVariableName(a.Key) {
				v.addWarning(fmt.Sprintf("node %s: variable name '%s' should be lowercase snake_case", id, a.Key))
			}
		}
	}
}

func (v *StoryValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addWarning(fmt.Sprintf("%s '%s' should be lowercase snake_case", fieldName, id))
	}
}

func (v *StoryValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

func (v *StoryValidator) addWarning(msg string) {
	if v.strict {
		v.addError(msg)
		return
	}
	v.warnings = append(v.warnings, "  ! "+msg)
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validVarRegex      = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidVariableName(name string) bool {
	return validVarRegex.MatchString(name)
}

func isValidStoryFilename(name string) bool {
	// Allow 'x.' prefix for experimental stories
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}
