package cli

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/saturnino-fabrica-de-software/facewatch/internal/capture"
	"github.com/saturnino-fabrica-de-software/facewatch/internal/service"
)

func newEnrollCommand(a *app) *cobra.Command {
	var (
		name    string
		details detailFlags
	)

	cmd := &cobra.Command{
		Use:   "enroll <image>",
		Short: "Enroll the first face found in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			d, _ := details.details(cmd.Flags())
			id, err := svc.identities.EnrollFile(cmd.Context(), args[0], name, d)
			if err != nil {
				return err
			}

			if name == "" {
				name = service.DisplayNameFromPath(args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enrolled %s as %s\n", name, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name (default: file name)")
	details.register(cmd.Flags())
	return cmd
}

func newEnrollDirCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enroll-dir <dir>",
		Short: "Enroll every image in a directory, named after its file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := capture.ListImages(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no images in %s\n", args[0])
				return nil
			}

			svc, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			bar := progressbar.NewOptions(len(files),
				progressbar.OptionSetDescription("enrolling"),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionShowCount(),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(cmd.ErrOrStderr()) }),
			)

			report, err := svc.identities.EnrollDir(cmd.Context(), args[0], func(service.EnrollOutcome) {
				_ = bar.Add(1)
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "enrolled %d of %d images\n", report.Enrolled, len(files))
			for _, f := range report.Failed {
				fmt.Fprintf(out, "  failed %s: %v\n", f.Path, f.Err)
			}
			return nil
		},
	}
}
