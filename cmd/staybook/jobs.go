package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookingapp "staybook/internal/app/handlers/booking"
	calendarapp "staybook/internal/app/handlers/calendar"
	"staybook/internal/app/services/auth"
)

var systemActor = auth.Actor{ID: "staybook-scheduler", Role: auth.RoleSystem}

func expireBookingsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "expire-bookings",
		Short: "Expire pending bookings past their deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(context.Background())
			res, err := rt.expirePending(cmd.Context(), limit)
			if err != nil {
				return err
			}
			cmd.Printf("expired %d bookings\n", res.Expired)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum bookings per run, 0 uses the default batch")
	return cmd
}

func (rt *runtime) expirePending(ctx context.Context, limit int) (*dto.ExpireResult, error) {
	ctx = auth.ContextWithActor(ctx, systemActor)
	res, err := commands.Dispatch[bookingapp.ExpirePendingBookingsCommand, *dto.ExpireResult](ctx, rt.app.Commands, bookingapp.ExpirePendingBookingsCommand{Limit: limit})
	if err != nil {
		return nil, err
	}
	if res.Expired > 0 {
		rt.logger.Info("pending bookings expired", "count", res.Expired, "ids", res.IDs)
	}
	return res, nil
}

func syncCalendarsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-calendars LISTING_ID...",
		Short: "Import the external calendars of the given listings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close(context.Background())
			ctx := auth.ContextWithActor(cmd.Context(), systemActor)
			var failed []error
			for _, listingID := range args {
				res, err := commands.Dispatch[calendarapp.SyncListingCalendarsCommand, *dto.SyncAllResult](ctx, rt.app.Commands, calendarapp.SyncListingCalendarsCommand{ListingID: listingID})
				if err != nil {
					rt.logger.Error("listing sync failed", "listing_id", listingID, "error", err)
					failed = append(failed, err)
					continue
				}
				for _, r := range res.Results {
					if r.Error != "" {
						cmd.Printf("%s %s: %s\n", listingID, r.CalendarID, r.Error)
						continue
					}
					cmd.Printf("%s %s: %d imported, %d removed\n", listingID, r.CalendarID, r.Imported, r.Removed)
				}
			}
			return errors.Join(failed...)
		},
	}
}
