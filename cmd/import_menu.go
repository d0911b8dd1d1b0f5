package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cafemanager/database"
	"cafemanager/metrics"
	"cafemanager/model"
	"cafemanager/service"
)

var (
	importCafeID string
	importFile   string
)

var importMenuCmd = &cobra.Command{
	Use:   "import-menu",
	Short: "Add the menu items of an xlsx file to a cafe",
	Long: "Reads the first sheet of an xlsx workbook with the columns\n" +
		"category, name, description, price, small, medium, large\n" +
		"after a header row and adds every valid row as a menu item.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, db, err := boot()
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			return err
		}
		var cafe model.Cafe
		if err := db.First(&cafe, "id = ?", importCafeID).Error; err != nil {
			return fmt.Errorf("cafe %s: %w", importCafeID, err)
		}

		f, err := os.Open(importFile)
		if err != nil {
			return err
		}
		defer f.Close()

		ctx := commandContext(cmd, log)
		menuCache, closeCache := openCache(ctx, cfg, log)
		defer closeCache()

		svc := service.NewMenuService(db, menuCache, metrics.New(), cfg.BatchConcurrency)
		res, err := svc.ImportXLSX(ctx, cafe.ID, f)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "imported %d items, created %d categories\n", res.ItemsCreated, res.CategoriesCreated)
		for _, s := range res.Skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "  row %d skipped: %s\n", s.Row, s.Reason)
		}
		if res.ItemsCreated == 0 && len(res.Skipped) > 0 {
			return errors.New("no rows imported")
		}
		return nil
	},
}

func init() {
	importMenuCmd.Flags().StringVar(&importCafeID, "cafe", "", "id of the cafe to import into")
	importMenuCmd.Flags().StringVar(&importFile, "file", "", "path to the xlsx file")
	_ = importMenuCmd.MarkFlagRequired("cafe")
	_ = importMenuCmd.MarkFlagRequired("file")
}
