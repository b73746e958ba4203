package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/hylla/taskmon/internal/adapters/server/common"
	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
	"github.com/spf13/cobra"
)

// departmentCommand groups department administration.
func (c *cli) departmentCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "department", Aliases: []string{"departments", "dept"}, Short: "Manage departments"}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a department (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				d, err := rt.svc.CreateDepartment(ctx, args[0], description)
				if err != nil {
					return fmt.Errorf("create department: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(common.DepartmentViews([]domain.Department{d})[0])
				}
				_, err = fmt.Fprintf(c.stdout, "department %s created\n", d.Name)
				return err
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "department description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List departments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				departments, err := rt.svc.ListDepartments(ctx)
				if err != nil {
					return fmt.Errorf("list departments: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(map[string]any{"departments": common.DepartmentViews(departments)})
				}
				rows := make([][]string, 0, len(departments))
				for _, d := range departments {
					rows = append(rows, []string{d.Name, d.Description})
				}
				return c.printTable([]string{"NAME", "DESCRIPTION"}, rows)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete an unused department (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				if err := rt.svc.DeleteDepartment(ctx, args[0]); err != nil {
					return fmt.Errorf("delete department: %w", err)
				}
				_, err := fmt.Fprintf(c.stdout, "department %s deleted\n", args[0])
				return err
			})
		},
	}
	cmd.AddCommand(create, list, del)
	return cmd
}

// userCommand groups account administration.
func (c *cli) userCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Aliases: []string{"users"}, Short: "Manage user accounts"}
	cmd.AddCommand(c.userCreateCommand(), c.userListCommand(), c.userUpdateCommand())
	return cmd
}

func (c *cli) userCreateCommand() *cobra.Command {
	var (
		in           app.CreateUserInput
		role         string
		passwordFile string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := c.readSecret(passwordFile, envNewPassword)
			if err != nil {
				return err
			}
			in.Password = password
			in.Role = domain.NormalizeRole(role)
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				user, err := rt.svc.CreateUser(ctx, in)
				if err != nil {
					return fmt.Errorf("create user: %w", err)
				}
				return c.printUser(user)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Username, "username", "", "login name")
	f.StringVar(&role, "role", string(domain.RoleCommon), "common|supervisor|admin")
	f.StringVar(&in.FullName, "full-name", "", "display name")
	f.StringVar(&in.Email, "email", "", "email address")
	f.StringVar(&in.Department, "department", "", "department name")
	f.StringVar(&passwordFile, "password-file", "", "file holding the password (default env "+envNewPassword+")")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func (c *cli) userListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				users, err := rt.svc.ListUsers(ctx)
				if err != nil {
					return fmt.Errorf("list users: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(map[string]any{"users": common.UserViews(users)})
				}
				rows := make([][]string, 0, len(users))
				for _, u := range users {
					lastLogin := "-"
					if u.LastLogin != nil {
						lastLogin = formatTime(*u.LastLogin)
					}
					rows = append(rows, []string{u.ID, u.Username, string(u.Role), u.Department, string(u.Status), lastLogin})
				}
				return c.printTable([]string{"ID", "USERNAME", "ROLE", "DEPARTMENT", "STATUS", "LAST LOGIN"}, rows)
			})
		},
	}
}

func (c *cli) userUpdateCommand() *cobra.Command {
	var (
		fullName     string
		email        string
		department   string
		role         string
		status       string
		passwordFile string
	)
	cmd := &cobra.Command{
		Use:   "update <user-id>",
		Short: "Edit a user; non-admins may only edit their own name, email and password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in app.UpdateUserInput
			f := cmd.Flags()
			if f.Changed("full-name") {
				in.FullName = &fullName
			}
			if f.Changed("email") {
				in.Email = &email
			}
			if f.Changed("department") {
				in.Department = &department
			}
			if f.Changed("role") {
				r := domain.NormalizeRole(role)
				in.Role = &r
			}
			if f.Changed("status") {
				st := domain.UserStatus(strings.ToLower(strings.TrimSpace(status)))
				in.Status = &st
			}
			if f.Changed("password-file") {
				password, err := c.readSecret(passwordFile, envNewPassword)
				if err != nil {
					return err
				}
				in.Password = &password
			}
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				user, err := rt.svc.UpdateUser(ctx, args[0], in)
				if err != nil {
					return fmt.Errorf("update user: %w", err)
				}
				return c.printUser(user)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&fullName, "full-name", "", "display name")
	f.StringVar(&email, "email", "", "email address")
	f.StringVar(&department, "department", "", "department name")
	f.StringVar(&role, "role", "", "common|supervisor|admin")
	f.StringVar(&status, "status", "", "active|inactive")
	f.StringVar(&passwordFile, "password-file", "", "file holding the new password")
	return cmd
}

func (c *cli) printUser(u domain.User) error {
	if c.jsonOut {
		return c.printJSON(common.NewUserView(u))
	}
	_, err := fmt.Fprintf(c.stdout, "%s  %s  [%s]\n", u.ID, u.Username, u.Role)
	return err
}

// metricsCommand prints the dashboard and productivity series.
func (c *cli) metricsCommand() *cobra.Command {
	var (
		department string
		user       string
		window     int
	)
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show completion, workload and productivity metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope := app.Scope{Department: department, OwnerID: user}
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				dashboard, err := rt.svc.Dashboard(ctx, scope)
				if err != nil {
					return fmt.Errorf("dashboard: %w", err)
				}
				series, err := rt.svc.ProductivitySeries(ctx, scope, window)
				if err != nil {
					return fmt.Errorf("productivity series: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(map[string]any{"dashboard": dashboard, "series": series})
				}
				return c.printMarkdown(dashboardMarkdown(dashboard, series))
			})
		},
	}
	cmd.Flags().StringVar(&department, "department", "", "restrict to one department")
	cmd.Flags().StringVar(&user, "user", "", "restrict to one owner id")
	cmd.Flags().IntVar(&window, "window", 0, "productivity window in days (default from config)")
	return cmd
}

// auditCommand lists the newest audit entries.
func (c *cli) auditCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the newest audit log entries (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.asActor(cmd, func(ctx context.Context, rt *runtime) error {
				entries, err := rt.svc.ListAudit(ctx, limit)
				if err != nil {
					return fmt.Errorf("list audit: %w", err)
				}
				if c.jsonOut {
					return c.printJSON(map[string]any{"entries": common.AuditViews(entries)})
				}
				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{formatTime(e.CreatedAt), e.ActorID, string(e.Action), e.Details})
				}
				return c.printTable([]string{"AT", "ACTOR", "ACTION", "DETAILS"}, rows)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries")
	return cmd
}
