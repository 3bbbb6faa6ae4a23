package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"filerecon/internal/config"
	"filerecon/internal/models"
	"filerecon/internal/store"
)

func newPatientsCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "Manage patients in the bundled SQLite schema",
	}
	cmd.AddCommand(newPatientsAddCmd(cfg, out), newPatientsRmCmd(cfg, out))
	return cmd
}

func newPatientsAddCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name>",
		Short: "Create a patient",
		Args:  requireExactlyArgs(1, "patient name is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), cfg, func(st *store.Store) error {
				patient := &models.Patient{Name: args[0]}
				if err := st.CreatePatient(cmd.Context(), patient); err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(patient)
				}
				return writePlain("created patient %d\n", patient.ID)
			})
		},
	}
}

func newPatientsRmCmd(cfg *config.Config, out *outputFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a patient and all of its file records",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withStore(cmd.Context(), cfg, func(st *store.Store) error {
				patient, err := st.GetPatient(cmd.Context(), id)
				if err != nil {
					return err
				}
				if patient == nil {
					return fmt.Errorf("patient %d not found", id)
				}
				files, err := st.ListFilesByPatient(cmd.Context(), id)
				if err != nil {
					return err
				}

				ok, err := approveDestructive(yes, fmt.Sprintf("Delete patient %d (%s) and %d file records", id, patient.Name, len(files)))
				if err != nil {
					return err
				}
				if !ok {
					return writePlain("would delete patient %d and %d file records\n", id, len(files))
				}
				if err := st.DeletePatient(cmd.Context(), id); err != nil {
					return err
				}
				if out.structured() {
					return writeStructured(map[string]any{"deleted": id, "files": len(files)})
				}
				return writePlain("deleted patient %d and %d file records\n", id, len(files))
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}
