package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/admingate/internal/config"
	"github.com/ppiankov/admingate/internal/store"
)

var (
	userConfig string
	userEmail  string
	userAdmin  bool
)

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.PersistentFlags().StringVar(&userConfig, "config", "", "Path to config YAML (default ~/.admingate/config.yaml)")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email for the subject record")
	userAddCmd.Flags().BoolVar(&userAdmin, "admin", false, "Grant administrator privileges")
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage subject records in the document store",
	Long:  "Provisions the subjects the gateway authorizes against.\nOnly subjects with the admin flag can invoke privileged operations.",
}

var userAddCmd = &cobra.Command{
	Use:   "add <subject-id>",
	Short: "Add or replace a subject record",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subject records",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func openUserStore() (*store.SQLite, error) {
	cfg, err := config.Load(userConfig)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(cfg.StorePath); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return store.OpenSQLite(cfg.StorePath)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	st, err := openUserStore()
	if err != nil {
		return err
	}
	defer st.Close()

	u := store.User{SubjectID: args[0], Email: userEmail, IsAdmin: userAdmin}
	if err := st.PutUser(context.Background(), u); err != nil {
		return err
	}
	fmt.Printf("added %s (admin=%v)\n", u.SubjectID, u.IsAdmin)
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	st, err := openUserStore()
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUsers(context.Background())
	if err != nil {
		return err
	}
	for _, u := range users {
		flag := " "
		if u.IsAdmin {
			flag = "*"
		}
		fmt.Printf("%s %-30s %s\n", flag, u.SubjectID, u.Email)
	}
	return nil
}
