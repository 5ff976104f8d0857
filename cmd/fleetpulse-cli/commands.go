package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/fleetpulse/cmd/fleetpulse-cli/client"
	"github.com/spf13/cobra"
)

func newAlertsCommand() *cobra.Command {
	var status, tenant string

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			alerts, err := apiClient().ListAlerts(status, tenant)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "ID\tSEVERITY\tTENANT\tSTATUS\tLAST SEEN\tMESSAGE\t")
			for _, a := range alerts {
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t\n",
					a.ID, a.Severity, a.TenantID, a.Status,
					a.LastSeen.Format("15:04:05"), a.Message)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (active|acknowledged|resolved)")
	cmd.Flags().StringVar(&tenant, "tenant", "", "Filter by tenant id")
	return cmd
}

func newAckCommand() *cobra.Command {
	var actor, notes string

	cmd := &cobra.Command{
		Use:   "ack [alert-id]",
		Short: "Acknowledge an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid alert id: %v", err)
			}

			alert, err := apiClient().Acknowledge(uint(id), actor, notes)
			if err != nil {
				return err
			}

			fmt.Printf("Alert %d acknowledged by %s\n", alert.ID, alert.AcknowledgedBy)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Who is acknowledging")
	cmd.Flags().StringVar(&notes, "notes", "", "Acknowledgment notes")
	cmd.MarkFlagRequired("actor")
	return cmd
}

func newDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the current fleet dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			dashboard, err := apiClient().Dashboard()
			if err != nil {
				return err
			}

			tenants, _ := dashboard["tenants"].([]interface{})
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "TENANT\tSTALE\tMETRIC\tVALUE\t")
			for _, t := range tenants {
				entry, ok := t.(map[string]interface{})
				if !ok {
					continue
				}
				tenantID := entry["tenant_id"]
				stale := entry["stale"]
				metrics, _ := entry["metrics"].(map[string]interface{})

				names := make([]string, 0, len(metrics))
				for name := range metrics {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					fmt.Fprintf(w, "%v\t%v\t%s\t%.1f\t\n", tenantID, stale, name, metrics[name])
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}

			alerts, _ := dashboard["alerts"].([]interface{})
			fmt.Printf("\n%d open alert(s)\n", len(alerts))
			return nil
		},
	}
}

func newProjectsCommand() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List operational projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			projects, err := apiClient().ListProjects(tenant)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "ID\tTENANT\tNAME\tSTATUS\tPROGRESS\t")
			for _, p := range projects {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%d%%\t\n",
					p.ID, p.TenantID, p.Name, p.Status, p.Progress)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "Filter by tenant id")
	cmd.AddCommand(newProjectCreateCommand())
	cmd.AddCommand(newProjectUpdateCommand())
	return cmd
}

func newProjectCreateCommand() *cobra.Command {
	var (
		tenant      uint
		name        string
		description string
		milestones  []string
		actor       string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := apiClient().CreateProject(tenant, name, description, milestones, actor)
			if err != nil {
				return err
			}

			fmt.Printf("Project %d (%s) created for tenant %d\n", project.ID, project.Name, project.TenantID)
			return nil
		},
	}

	cmd.Flags().UintVar(&tenant, "tenant", 0, "Owning tenant id")
	cmd.Flags().StringVar(&name, "name", "", "Project name")
	cmd.Flags().StringVar(&description, "description", "", "Project description")
	cmd.Flags().StringSliceVar(&milestones, "milestone", nil, "Milestone (repeatable)")
	cmd.Flags().StringVar(&actor, "actor", "", "Who is creating")
	cmd.MarkFlagRequired("tenant")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newProjectUpdateCommand() *cobra.Command {
	var (
		status string
		note   string
		actor  string
	)

	cmd := &cobra.Command{
		Use:   "update [project-id]",
		Short: "Update a project's status or progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid project id: %v", err)
			}

			var progress *int
			if cmd.Flags().Changed("progress") {
				p, err := cmd.Flags().GetInt("progress")
				if err != nil {
					return err
				}
				progress = &p
			}

			project, err := apiClient().UpdateProject(uint(id), status, progress, note, actor)
			if err != nil {
				return err
			}

			fmt.Printf("Project %d is %s at %d%%\n", project.ID, project.Status, project.Progress)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "New status (planning|in_progress|completed)")
	cmd.Flags().Int("progress", 0, "Completion percentage (0-100)")
	cmd.Flags().StringVar(&note, "note", "", "Update note")
	cmd.Flags().StringVar(&actor, "actor", "", "Who is updating")
	return cmd
}

func apiClient() *client.Client {
	return client.New(serverURL)
}
