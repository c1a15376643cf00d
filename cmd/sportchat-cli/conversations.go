package main

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fenggwsx/SportChat/internal/client"
)

func (c *cli) conversationCommands() []*cobra.Command {
	var (
		sport    string
		threadID int64
	)
	send := &cobra.Command{
		Use:   "send <message...>",
		Short: "Ask a sports question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var thread *int64
			if cmd.Flags().Changed("thread") {
				thread = &threadID
			}
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.SendMessage(ctx, strings.Join(args, " "), sport, thread)
				if err != nil {
					return err
				}
				c.print(client.RenderReply(res))
				return nil
			})
		},
	}
	send.Flags().StringVarP(&sport, "sport", "s", "", "sport the question is about")
	send.Flags().Int64VarP(&threadID, "thread", "t", 0, "continue an existing thread")
	_ = send.MarkFlagRequired("sport")

	var filter string
	threads := &cobra.Command{
		Use:   "threads",
		Short: "List conversations grouped by thread",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.Threads(ctx, filter)
				if err != nil {
					return err
				}
				c.print(client.RenderThreads(res))
				return nil
			})
		},
	}
	threads.Flags().StringVarP(&filter, "sport", "s", "", "only show this sport")

	var searchSport string
	search := &cobra.Command{
		Use:   "search <term>",
		Short: "Search your messages and replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.Search(ctx, args[0], searchSport)
				if err != nil {
					return err
				}
				c.print(client.RenderTurns(res))
				return nil
			})
		},
	}
	search.Flags().StringVarP(&searchSport, "sport", "s", "", "only search this sport")

	del := &cobra.Command{
		Use:   "delete <turn-id>",
		Short: "Delete one conversation turn",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.DeleteConversation(ctx, id)
				if err != nil {
					return err
				}
				c.print(outcome(res.Success, res.Deleted, res.Error, "deleted", "nothing deleted"))
				return nil
			})
		},
	}

	delThread := &cobra.Command{
		Use:   "delete-thread <thread-id>",
		Short: "Delete every turn of a thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.DeleteThread(ctx, id)
				if err != nil {
					return err
				}
				c.print(outcome(res.Success, res.Deleted, res.Error, "deleted", "nothing deleted"))
				return nil
			})
		},
	}

	edit := &cobra.Command{
		Use:   "edit <turn-id> <message...>",
		Short: "Replace the stored message of a turn",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, s *client.Session) error {
				res, err := s.UpdateConversation(ctx, id, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				c.print(outcome(res.Success, res.Updated, res.Error, "updated", "nothing updated"))
				return nil
			})
		},
	}

	return []*cobra.Command{send, threads, search, del, delThread, edit}
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid id %q", arg)
	}
	return id, nil
}

func outcome(success, changed bool, reason, yes, no string) string {
	if !success {
		return "error: " + reason
	}
	if changed {
		return yes
	}
	return no
}
