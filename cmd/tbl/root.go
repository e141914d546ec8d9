package tbl

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ValentinKolb/dTable/cmd/util"
	"github.com/ValentinKolb/dTable/lib/db"
	"github.com/ValentinKolb/dTable/lib/db/engines/rowan"
	"github.com/ValentinKolb/dTable/lib/store"
	"github.com/ValentinKolb/dTable/lib/store/lstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	engine   db.TableDB
	tblStore store.ITableStore

	// TableCommands represents the tbl command group. All subcommands operate
	// on a file-backed local store: the engine image is loaded before the
	// operation and written back afterwards for mutating commands.
	TableCommands = &cobra.Command{
		Use:               "tbl",
		Short:             "Perform table store operations on a local database file",
		PersistentPreRunE: setupStore,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add flags
	TableCommands.PersistentFlags().String("file", "dtable.db", util.WrapString("Path of the database file. A missing file is treated as an empty database"))

	// Add subcommands
	TableCommands.AddCommand(mktableCmd)
	TableCommands.AddCommand(insertCmd)
	TableCommands.AddCommand(getCmd)
	TableCommands.AddCommand(updateCmd)
	TableCommands.AddCommand(deleteCmd)
	TableCommands.AddCommand(selectCmd)
	TableCommands.AddCommand(countCmd)
	TableCommands.AddCommand(idCmd)
	TableCommands.AddCommand(firstCmd)
	TableCommands.AddCommand(nextCmd)
	TableCommands.AddCommand(prevCmd)
	TableCommands.AddCommand(lastCmd)
	TableCommands.AddCommand(attrsCmd)
	TableCommands.AddCommand(infoCmd)
	TableCommands.AddCommand(perfTestCmd)
}

// setupStore loads the engine image from the database file and wraps it in a
// local store.
func setupStore(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	engine = rowan.NewRowanDB(nil)

	path := viper.GetString("file")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		// Empty database
		tblStore = lstore.NewLocalStoreFromDB(engine)
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := engine.Load(f); err != nil {
		return fmt.Errorf("failed to load database file %s: %w", path, err)
	}
	tblStore = lstore.NewLocalStoreFromDB(engine)
	return nil
}

// saveStore writes the engine image back to the database file. Called by all
// mutating commands after their operation succeeded.
func saveStore() error {
	path := viper.GetString("file")
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := engine.Save(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to save database file %s: %w", path, err)
	}
	return f.Close()
}

// parseKey converts a command line argument into a typed key. Integers and
// floats become typed numbers, everything else stays a string.
func parseKey(arg string) any {
	if i, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return int(i)
	}
	if f, err := strconv.ParseFloat(arg, 64); err == nil {
		return f
	}
	return arg
}

// parseField converts a command line argument into a typed record field.
// The underscore placeholder becomes the keep-stored sentinel used by update
// patches.
func parseField(arg string) any {
	if arg == "_" {
		return db.NoValue
	}
	return parseKey(arg)
}
