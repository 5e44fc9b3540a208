// cmd/pdk/prompts.go
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func promptID(args []string, name string) (int64, []string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	id := fs.Int64("id", 0, "prompt id")
	_ = fs.Parse(args)
	if *id == 0 {
		fmt.Fprintln(os.Stderr, "need -id")
		os.Exit(1)
	}
	return *id, fs.Args()
}

func cmdList(ctx context.Context, a *app) {
	requireSession(ctx, a)
	prompts, err := a.api.Prompts(ctx)
	if err != nil {
		fail(err)
	}
	type row struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Author   string `json:"author"`
		Status   string `json:"status"`
		Votes    int    `json:"votes"`
		Mine     int    `json:"my_vote"`
		Bookmark bool   `json:"bookmarked"`
	}
	rows := make([]row, 0, len(prompts))
	for _, p := range prompts {
		rows = append(rows, row{
			ID: p.ID, Title: p.Title, Author: p.Author, Status: p.Status,
			Votes: p.VoteCount, Mine: p.UserVote, Bookmark: p.IsBookmarked,
		})
	}
	printJSON(rows)
}

func cmdShow(ctx context.Context, a *app, args []string) {
	id, _ := promptID(args, "show")
	requireSession(ctx, a)
	p, err := a.api.Prompt(ctx, id)
	if err != nil {
		fail(err)
	}
	printJSON(p)
}

func cmdVote(ctx context.Context, a *app, args []string, value int) {
	id, _ := promptID(args, "vote")
	requireSession(ctx, a)
	p, err := a.api.Prompt(ctx, id)
	if err != nil {
		fail(err)
	}
	state, err := a.votes.Vote(ctx, p, value)
	if err != nil {
		fail(err)
	}
	fmt.Printf("vote=%d count=%d\n", state.UserVote, state.VoteCount)
}

func cmdBookmark(ctx context.Context, a *app, args []string) {
	id, _ := promptID(args, "bookmark")
	requireSession(ctx, a)
	p, err := a.api.Prompt(ctx, id)
	if err != nil {
		fail(err)
	}
	bookmarked, err := a.votes.Bookmark(ctx, p)
	if err != nil {
		fail(err)
	}
	if bookmarked {
		fmt.Println("bookmarked")
	} else {
		fmt.Println("bookmark removed")
	}
}

func cmdHistory(ctx context.Context, a *app, args []string) {
	id, _ := promptID(args, "history")
	requireSession(ctx, a)
	if err := a.history.Open(ctx, id); err != nil {
		fmt.Fprintln(os.Stderr, a.history.FailureReason())
		os.Exit(1)
	}
	versions := a.history.Versions()
	if len(versions) == 0 {
		fmt.Println("no history yet; versions are created when an approved prompt is edited")
		return
	}
	for i, v := range versions {
		fmt.Printf("#%d  version=%d  @%s  %s\n    %s\n",
			len(versions)-i, v.ID, v.EditedByUsername,
			v.CreatedAt.UTC().Format(time.RFC3339), v.Title)
	}
}

func cmdRevert(ctx context.Context, a *app, args []string) {
	fs := flag.NewFlagSet("revert", flag.ExitOnError)
	id := fs.Int64("id", 0, "prompt id")
	versionID := fs.Int64("version", 0, "version id to restore")
	yes := fs.Bool("yes", false, "skip confirmation")
	_ = fs.Parse(args)
	if *id == 0 || *versionID == 0 {
		fmt.Fprintln(os.Stderr, "need -id and -version")
		os.Exit(1)
	}
	requireSession(ctx, a)

	if err := a.history.Open(ctx, *id); err != nil {
		fmt.Fprintln(os.Stderr, a.history.FailureReason())
		os.Exit(1)
	}
	if err := a.history.RequestRevert(*versionID); err != nil {
		fail(err)
	}
	if !*yes && !confirm(fmt.Sprintf("Revert prompt %d to version %d? This creates a new version with those contents.", *id, *versionID)) {
		a.history.CancelRevert()
		fmt.Println("canceled")
		return
	}
	if err := a.history.ConfirmRevert(ctx); err != nil {
		os.Exit(1)
	}
}

func cmdModerate(ctx context.Context, a *app, args []string, action string) {
	id, _ := promptID(args, action)
	s := requireSession(ctx, a)
	if !s.Admin() {
		fmt.Fprintln(os.Stderr, "admin privileges required")
		os.Exit(1)
	}
	var err error
	if action == "approve" {
		_, err = a.api.Approve(ctx, id)
	} else {
		_, err = a.api.Reject(ctx, id)
	}
	if err != nil {
		fail(err)
	}
	if action == "approve" {
		fmt.Println("approved")
	} else {
		fmt.Println("rejected")
	}
}

func cmdCategories(ctx context.Context, a *app) {
	requireSession(ctx, a)
	cats, err := a.api.Categories(ctx)
	if err != nil {
		fail(err)
	}
	printJSON(cats)
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
