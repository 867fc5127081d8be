// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package apps implements 'webhost apps', which lists, deploys and
// manages the web apps hosted by webhostd.
package apps

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/webhost/internal/commands/completion"
	"github.com/tombee/webhost/internal/commands/shared"
)

// deployTimeout covers a fetch plus extraction on the daemon side.
const deployTimeout = 10 * time.Minute

// NewCommand creates the apps command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "apps",
		Aliases: []string{"app"},
		Short:   "Manage deployed web apps",
		Long: `List, deploy and manage web apps.

Apps are named after their archive file: shop.war is served under /shop/.
Names may be given bare ("shop") or as a path ("/shop/*"). The app mapped
to the web root is addressed as "/".`,
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newDeployCommand())
	cmd.AddCommand(newRescanCommand())
	cmd.AddCommand(newInfoCommand())
	cmd.AddCommand(newStopCommand())
	cmd.AddCommand(newRedeployCommand())
	cmd.AddCommand(newRemoveCommand())

	return cmd
}

type listOutput struct {
	shared.JSONResponse
	Apps []string `json:"apps"`
}

func emitApps(cmd *cobra.Command, name string, list []string) error {
	if shared.GetJSON() {
		if list == nil {
			list = []string{}
		}
		return shared.EmitJSON(listOutput{JSONResponse: shared.NewJSONResponse(name), Apps: list})
	}
	printApps(shared.Out(cmd.OutOrStdout()), list)
	return nil
}

func printApps(w io.Writer, list []string) {
	if len(list) == 0 {
		fmt.Fprintln(w, shared.Muted.Render("No apps deployed"))
		return
	}
	fmt.Fprintln(w, shared.Header.Render("Apps"))
	for _, app := range list {
		fmt.Fprintf(w, "  %s\n", app)
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List running apps",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			c, err := shared.NewClient()
			if err != nil {
				return err
			}
			list, err := c.ListApps(ctx)
			if err != nil {
				return err
			}
			return emitApps(cmd, "apps list", list)
		},
	}
}

func newRescanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rescan",
		Short: "Install archives that are not yet deployed",
		Long: `Scan the webapps directory and install every archive that has no
running app. Apps that are already running are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), deployTimeout)
			defer cancel()

			c, err := shared.NewClient()
			if err != nil {
				return err
			}
			list, err := c.Rescan(ctx)
			if err != nil {
				return err
			}
			return emitApps(cmd, "apps rescan", list)
		},
	}
}

func newDeployCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy URL",
		Short: "Download an archive and deploy it",
		Long: `Download an archive over http or https into the webapps directory and
deploy it. A running app of the same name is replaced; if the new
version fails to deploy the old one keeps serving.`,
		Example: `  webhost apps deploy https://example.com/builds/shop.war`,
		Args:    cobra.ExactArgs(1),
		RunE:    runDeploy,
	}
}

func runDeploy(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), deployTimeout)
	defer cancel()

	c, err := shared.NewClient()
	if err != nil {
		return err
	}

	spinner := shared.NewSpinner()
	if !shared.GetJSON() {
		spinner.Start("Deploying " + args[0])
	}
	resp, err := c.Deploy(ctx, args[0])
	elapsed := spinner.Stop()
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		if err := shared.EmitJSON(struct {
			shared.JSONResponse
			Message string   `json:"message,omitempty"`
			Apps    []string `json:"apps"`
		}{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "apps deploy", Success: resp.OK},
			Message:      resp.Message,
			Apps:         resp.Apps,
		}); err != nil {
			return err
		}
	} else if resp.OK {
		fmt.Fprintln(shared.Out(cmd.OutOrStdout()),
			shared.RenderOK("Deployed "+args[0]+" "+shared.Muted.Render("("+shared.FormatElapsed(elapsed)+")")))
	}

	if !resp.OK {
		return shared.NewFailureError("deploy failed", fmt.Errorf("%s", resp.Message))
	}
	return nil
}

func newInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:               "info NAME",
		Short:             "Describe an app",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteAppNames,
		RunE:              func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			c, err := shared.NewClient()
			if err != nil {
				return err
			}
			info, err := c.AppInfo(ctx, args[0])
			if err != nil {
				return err
			}

			if shared.GetJSON() {
				return shared.EmitJSON(struct {
					shared.JSONResponse
					Name string `json:"name"`
					Info string `json:"info"`
				}{shared.NewJSONResponse("apps info"), info.Name, info.Info})
			}
			fmt.Fprintln(shared.Out(cmd.OutOrStdout()), info.Info)
			return nil
		},
	}
}

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop NAME",
		Short: "Stop serving an app",
		Long: `Stop serving an app without touching its files. The app comes back
on the next 'webhost apps rescan' or 'webhost apps redeploy'.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteAppNames,
		RunE:              func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			c, err := shared.NewClient()
			if err != nil {
				return err
			}
			list, err := c.StopApp(ctx, args[0])
			if err != nil {
				return err
			}
			return emitApps(cmd, "apps stop", list)
		},
	}
}

func newRedeployCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "redeploy NAME",
		Short: "Redeploy an app from its archive",
		Long: `Extract the app's archive again and replace the running version.
Sessions and cached resources of the old version are dropped.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteAppNames,
		RunE:              func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), deployTimeout)
			defer cancel()

			c, err := shared.NewClient()
			if err != nil {
				return err
			}
			list, err := c.RedeployApp(ctx, args[0])
			if err != nil {
				return err
			}
			return emitApps(cmd, "apps redeploy", list)
		},
	}
}

func newRemoveCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "remove NAME",
		Aliases: []string{"rm"},
		Short:   "Delete an app and its archive",
		Long: `Stop an app and delete both its archive and its extracted files.
This cannot be undone. Use --yes to skip the confirmation prompt.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteAppNames,
		RunE:              func(cmd *cobra.Command, args []string) error {
			ok, err := shared.Confirm(
				fmt.Sprintf("Remove %s?", args[0]),
				"The archive and extracted files will be deleted.",
				yes,
			)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(shared.Out(cmd.OutOrStdout()), shared.Muted.Render("Cancelled"))
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			c, err := shared.NewClient()
			if err != nil {
				return err
			}
			list, err := c.RemoveApp(ctx, args[0])
			if err != nil {
				return err
			}
			return emitApps(cmd, "apps remove", list)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
