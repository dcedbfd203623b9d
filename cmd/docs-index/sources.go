package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var labsFlags struct {
	upload bool
}

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Index REST API endpoints",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(true)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, cancel := signalContext()
		defer cancel()

		n, err := s.runner.IndexAPI(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d endpoint records.\n", n)
		return nil
	},
}

var blogsCmd = &cobra.Command{
	Use:   "blogs",
	Short: "Index blog posts listed in the sitemap",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(true)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, cancel := signalContext()
		defer cancel()

		summary, err := s.runner.IndexBlogs(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Blogs: %d pages, %d added, %d updated, %d unchanged.\n",
			summary.Pages, summary.Added, summary.Updated, summary.Unchanged)
		return nil
	},
}

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Index YouTube channel videos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(true)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, cancel := signalContext()
		defer cancel()

		n, err := s.runner.IndexVideos(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d videos.\n", n)
		return nil
	},
}

var labsCmd = &cobra.Command{
	Use:   "labs",
	Short: "Create lab invites and print (or upload) their records",
	Long: `labs lists the organization's Instruqt tracks, creates an anonymous
invite for each and prints the resulting records as JSON. Records are
written to the index only with --upload.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(labsFlags.upload)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, cancel := signalContext()
		defer cancel()

		s.runner.SetOutput(cmd.OutOrStdout())
		_, err = s.runner.IndexLabs(ctx, labsFlags.upload)
		return err
	},
}

func init() {
	rootCmd.AddCommand(apiCmd, blogsCmd, videosCmd, labsCmd)

	labsCmd.Flags().BoolVar(&labsFlags.upload, "upload", false, "write records to the search index")
}
