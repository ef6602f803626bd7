package cli

import (
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/campusbridge/lti-outcomes/internal/lti"
)

var rosterWithGroups bool

var rosterCmd = &cobra.Command{
	Use:   "roster <instance-id>",
	Short: "Request a course roster",
	Long:  `Send a readMembershipsRequest (or readMembershipsWithGroupsRequest with --groups) for the given tool instance`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		instanceID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}

		body, messageID, err := lti.BuildMembershipsRequest(instanceID, rosterWithGroups)
		if err != nil {
			return err
		}

		appLogger.Info("sending roster request",
			slog.Int64("instance_id", instanceID),
			slog.Bool("with_groups", rosterWithGroups),
			slog.String("message_id", messageID),
		)

		return postSigned(cmd.Context(), body)
	},
}

func init() {
	rosterCmd.Flags().BoolVar(&rosterWithGroups, "groups", false, "Include course group membership per member")
}
