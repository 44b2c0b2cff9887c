package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yungbote/familytree-backend/internal/app"
	"github.com/yungbote/familytree-backend/internal/services"
)

// env is what a command needs from the wired application.
type env struct {
	Family services.FamilyService
	Tree   services.TreeService
	Serve  func(ctx context.Context) error
	Close  func()
}

type opener func(ctx context.Context) (*env, error)

func openApp(ctx context.Context) (*env, error) {
	a, err := app.New(ctx)
	if err != nil {
		return nil, err
	}
	return &env{
		Family: a.Services.Family,
		Tree:   a.Services.Tree,
		Serve:  a.Run,
		Close:  a.Close,
	}, nil
}

type treeFlags struct {
	depth  int
	global bool
	scope  string
}

func (f *treeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.depth, "depth", -1, "generations to follow upward; descendants go twice as deep (<= 0 is unbounded)")
	cmd.Flags().BoolVar(&f.global, "global", false, "follow relations recorded under other scopes")
	cmd.Flags().StringVar(&f.scope, "scope", "", "scope to confine the tree to (defaults to the root's)")
}

func (f *treeFlags) request(rootID string) services.TreeRequest {
	return services.TreeRequest{RootID: rootID, Depth: f.depth, Global: f.global, Scope: f.scope}
}

func newRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "familytree",
		Short:         "Administer the family relationship graph",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// with opens the application for one command and closes it afterwards.
	with := func(fn func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()
			return fn(cmd, e, args)
		}
	}

	root.AddCommand(
		treeCmd(with),
		gedcomCmd(with),
		marryCmd(with),
		&cobra.Command{
			Use:   "divorce <member>",
			Short: "End a member's active marriage",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
				if err := e.Family.Divorce(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is no longer married\n", args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "adopt <parent> <child>",
			Short: "Make parent the parent of child",
			Args:  cobra.ExactArgs(2),
			RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
				if err := e.Family.Adopt(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now the parent of %s\n", args[0], args[1])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "disown <parent> <child>",
			Short: "Remove a parent link",
			Args:  cobra.ExactArgs(2),
			RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
				if err := e.Family.Disown(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is no longer the parent of %s\n", args[0], args[1])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "remove <member>",
			Short: "Detach a member from every marriage and parent link",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
				if err := e.Family.Remove(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s was removed from the tree\n", args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "profile <member> <display name>",
			Short: "Set the label a member is drawn with",
			Args:  cobra.ExactArgs(2),
			RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
				return e.Family.SetProfile(cmd.Context(), args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "partner <member>",
			Short: "Show a member's partner",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
				n, err := e.Family.Partner(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is married to %s (%s)\n", args[0], n.Label, n.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "children <member>",
			Short: "List a member's children",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
				kids, err := e.Family.Children(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(kids) == 0 {
					fmt.Fprintf(out, "%s has no children\n", args[0])
					return nil
				}
				fmt.Fprintf(out, "%s has %d children:\n", args[0], len(kids))
				for _, k := range kids {
					fmt.Fprintf(out, "  %s (%s)\n", k.Label, k.ID)
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "parent <member>",
			Short: "Show a member's parent",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
				n, err := e.Family.Parent(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s's parent is %s (%s)\n", args[0], n.Label, n.ID)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "check",
			Short: "Verify the tree converter, rasterizer and work directory",
			Args:  cobra.NoArgs,
			RunE: with(func(cmd *cobra.Command, e *env, _ []string) error {
				if err := e.Tree.AssertReady(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "render tools ready")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			Args:  cobra.NoArgs,
			RunE: with(func(cmd *cobra.Command, e *env, _ []string) error {
				return e.Serve(cmd.Context())
			}),
		},
	)
	return root
}

type wrapper func(fn func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error

func treeCmd(with wrapper) *cobra.Command {
	var (
		flags treeFlags
		text  bool
		out   string
	)
	cmd := &cobra.Command{
		Use:   "tree <member>",
		Short: "Draw the family tree around a member",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
			req := flags.request(args[0])
			if text {
				s, err := e.Tree.TreeText(cmd.Context(), req)
				if err != nil {
					return err
				}
				_, err = io.WriteString(cmd.OutOrStdout(), s)
				return err
			}
			res, err := e.Tree.RenderImage(cmd.Context(), req)
			if err != nil {
				return err
			}
			defer res.Release()
			dst := out
			if dst == "" {
				dst = "Tree of " + args[0] + filepath.Ext(res.ImagePath)
			}
			if err := copyFile(res.ImagePath, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", dst)
			return nil
		}),
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&text, "text", false, "print the tree-text instead of drawing an image")
	cmd.Flags().StringVarP(&out, "out", "o", "", "image destination (default \"Tree of <member>.<format>\")")
	return cmd
}

func gedcomCmd(with wrapper) *cobra.Command {
	var (
		flags treeFlags
		out   string
	)
	cmd := &cobra.Command{
		Use:   "gedcom <member>",
		Short: "Export the family tree around a member as GEDCOM",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
			name, body, err := e.Tree.Gedcom(cmd.Context(), flags.request(args[0]))
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = io.WriteString(cmd.OutOrStdout(), body)
				return err
			}
			dst := out
			if dst == "" {
				dst = name
			}
			if err := os.WriteFile(dst, []byte(body), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", dst)
			return nil
		}),
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "destination file, - for stdout (default \"Tree of <member>.ged\")")
	return cmd
}

func marryCmd(with wrapper) *cobra.Command {
	var scope, id string
	cmd := &cobra.Command{
		Use:   "marry <member> <member>",
		Short: "Marry two unmarried members",
		Args:  cobra.ExactArgs(2),
		RunE: with(func(cmd *cobra.Command, e *env, args []string) error {
			mid, err := e.Family.Marry(cmd.Context(), services.MarryInput{A: args[0], B: args[1], Scope: scope, MarriageID: id})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s and %s are now married (marriage %s)\n", args[0], args[1], mid)
			return nil
		}),
	}
	cmd.Flags().StringVar(&scope, "scope", "", "community the marriage belongs to")
	cmd.Flags().StringVar(&id, "id", "", "marriage id to use instead of a generated one")
	return cmd
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	outFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(outFile, in); err != nil {
		_ = outFile.Close()
		return err
	}
	return outFile.Close()
}
