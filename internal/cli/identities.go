package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/domain"
)

func newIdentitiesCommand(a *app) *cobra.Command {
	var all, asJSON bool

	cmd := &cobra.Command{
		Use:   "identities",
		Short: "List enrolled identities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStorage(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			var identities []domain.Identity
			if all {
				identities, err = st.identities.List(cmd.Context())
			} else {
				identities, err = st.identities.GetAllActive(cmd.Context())
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), identities)
			}
			printIdentities(cmd.OutOrStdout(), identities)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include deactivated identities")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printIdentities(out io.Writer, identities []domain.Identity) {
	if len(identities) == 0 {
		fmt.Fprintln(out, "No identities found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACTIVE\tDEPARTMENT\tACCESS\tLAST SEEN")
	for _, id := range identities {
		lastSeen := "-"
		if id.LastSeen != nil {
			lastSeen = id.LastSeen.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%d\t%s\n",
			id.ID, id.DisplayName, id.Active, deref(id.Details.Department), id.Details.Level(), lastSeen)
	}
	_ = w.Flush()
}

func newUpdateCommand(a *app) *cobra.Command {
	var (
		name    string
		image   string
		details detailFlags
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an identity's name, details or reference image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var namePtr *string
			if cmd.Flags().Changed("name") {
				namePtr = &name
			}
			var detailsPtr *domain.IdentityDetails
			if d, ok := details.details(cmd.Flags()); ok {
				detailsPtr = &d
			}
			if namePtr == nil && detailsPtr == nil && image == "" {
				return errors.New("nothing to update: pass --name, --image or a detail flag")
			}

			svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			ok, err := svc.identities.UpdateFromFile(cmd.Context(), id, namePtr, image, detailsPtr)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("identity %s: %w", id, domain.ErrUnknownIdentity)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New display name")
	cmd.Flags().StringVar(&image, "image", "", "New reference image, re-encoded")
	details.register(cmd.Flags())
	return cmd
}

func newDeactivateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Stop recognizing an identity; its logs are kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			ok, err := svc.identities.Deactivate(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("identity %s: %w", id, domain.ErrUnknownIdentity)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deactivated %s\n", id)
			return nil
		},
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
