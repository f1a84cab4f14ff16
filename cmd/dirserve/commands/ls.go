package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/dirserve/internal/cli/output"
	"github.com/marmos91/dirserve/pkg/config"
	"github.com/marmos91/dirserve/pkg/fileserver"
)

var (
	lsRoot   string
	lsOutput string
)

var lsCmd = &cobra.Command{
	Use:   "ls [PATH]",
	Short: "Show the listing the server would return for a path",
	Long: `Resolve PATH against the served root exactly like the server does and
print the directory entries it would list.

PATH is relative to the root and defaults to the root itself. Paths that
escape the root are rejected.

Examples:
  # List the root of the current directory
  dirserve ls

  # List a subdirectory of /srv/files as JSON
  dirserve ls docs --root /srv/files -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLs,
}

func init() {
	lsCmd.Flags().StringVar(&lsRoot, "root", "", "Directory to serve (default: server.root or working directory)")
	lsCmd.Flags().StringVarP(&lsOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runLs(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(lsOutput)
	if err != nil {
		return err
	}

	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("root") {
		cfg.Server.Root = lsRoot
	}

	rootDir, err := cfg.Server.RootDir()
	if err != nil {
		return err
	}
	resolver, err := fileserver.NewResolver(rootDir)
	if err != nil {
		return fmt.Errorf("invalid root directory: %w", err)
	}

	var reqPath string
	if len(args) > 0 {
		reqPath = fileserver.DecodePath(args[0])
	}

	listing, err := fileserver.BuildListing(resolver, reqPath)
	if err != nil {
		if errors.Is(err, fileserver.ErrForbidden) {
			return fmt.Errorf("%q is outside %s", reqPath, resolver.Root())
		}
		return err
	}

	printer := output.NewPrinter(cmd.OutOrStdout(), format, false)
	if format == output.FormatTable {
		return printer.Print(listingTable(listing))
	}
	return printer.Print(listing)
}

// listingTable renders a listing as NAME/TYPE rows, directories suffixed
// with a slash like in the HTML page.
func listingTable(l fileserver.Listing) *output.TableData {
	table := output.NewTableData("Name", "Type")
	for _, e := range l.Entries {
		name := e.Name
		if e.IsDir() {
			name += "/"
		}
		table.AddRow(name, e.Kind.String())
	}
	return table
}
