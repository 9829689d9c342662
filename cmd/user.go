package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage enrolled users",
}

var userNameCmd = &cobra.Command{
	Use:   "name USER_ID NAME",
	Short: "Bind a display name to an enrolled user",
	Long: `Bind a display name to an enrolled user. Albums of the user's identity are
titled with the name, and merges keep the named identity as the survivor.`,
	Args: cobra.ExactArgs(2),
	RunE: runUserName,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled users",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userNameCmd)
	userCmd.AddCommand(userListCmd)

	userListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runUserName(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.enrollment.SetName(args[0], args[1]); err != nil {
		return fmt.Errorf("setting name failed: %w", err)
	}
	fmt.Printf("User %s is now %q\n", args[0], args[1])
	return nil
}

func runUserList(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	users := a.enrollment.Users()
	if mustGetBool(cmd, "json") {
		return printJSON(users)
	}
	if len(users) == 0 {
		fmt.Println("No enrolled users")
		return nil
	}
	for _, u := range users {
		fmt.Printf("%s\t%s\n", u.UserID, u.Name)
	}
	return nil
}
