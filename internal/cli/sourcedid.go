package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/campusbridge/lti-outcomes/internal/lti"
)

var sourcedIDCmd = &cobra.Command{
	Use:   "sourcedid",
	Short: "Mint and inspect sourcedId tokens",
	Long:  `Mint sourcedId tokens for testing and verify tokens against a service salt`,
}

var (
	saltFlag   string
	instanceID int64
	userID     int64
	launchID   int64
)

var sourcedIDMintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a sourcedId token",
	Long: `Mint a signed sourcedId token for the given instance, user and launch.

Example:
  outcomes-client sourcedid mint --instance 12 --user 7 --launch 3401 --salt <service-salt>`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if saltFlag == "" {
			return fmt.Errorf("--salt is required")
		}
		if instanceID <= 0 || userID <= 0 {
			return fmt.Errorf("--instance and --user are required")
		}

		token, err := lti.BuildSourcedID(instanceID, userID, launchID, saltFlag).Token()
		if err != nil {
			return err
		}

		fmt.Println(token)
		return nil
	},
}

var sourcedIDCheckCmd = &cobra.Command{
	Use:   "check <token>",
	Short: "Parse and verify a sourcedId token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if saltFlag == "" {
			return fmt.Errorf("--salt is required")
		}

		sourcedID, err := lti.ParseSourcedID(args[0])
		if err != nil {
			return err
		}

		if err := sourcedID.Verify(saltFlag); err != nil {
			return err
		}

		appLogger.Info("sourcedId verified",
			slog.Int64("instance_id", sourcedID.Data.InstanceID),
			slog.Int64("user_id", sourcedID.Data.UserID),
			slog.Int64("launch_id", sourcedID.Data.LaunchID),
		)
		return nil
	},
}

func init() {
	sourcedIDCmd.PersistentFlags().StringVar(&saltFlag, "salt", "", "Per-instance service salt")
	sourcedIDMintCmd.Flags().Int64Var(&instanceID, "instance", 0, "Tool instance id")
	sourcedIDMintCmd.Flags().Int64Var(&userID, "user", 0, "User id")
	sourcedIDMintCmd.Flags().Int64Var(&launchID, "launch", 0, "Launch id (0 for roster-issued tokens)")

	sourcedIDCmd.AddCommand(sourcedIDMintCmd)
	sourcedIDCmd.AddCommand(sourcedIDCheckCmd)
}
