package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"photofeed/internal/app"
	"photofeed/internal/config"
	"photofeed/internal/feed"
	"photofeed/internal/validation"
	"photofeed/pkg/client"
)

const usageText = `usage: feedctl <command> [flags]

account:
  signup   -email E -password P -confirm P -username U
  signin   -email E -password P
  signout
  reset    -email E
  verify   -type signup|recovery -token T [-password P]
  whoami
  watch    print auth events until interrupted

profile:
  profile set-username NAME
  avatar set FILE.jpg
  avatar remove

posts:
  feed     [-user ID | -mine]
  post     -image FILE.jpg -caption TEXT
  edit     POST_ID CAPTION
  delete   POST_ID
  like     POST_ID
  unlike   POST_ID
`

var errUsage = errors.New("invalid usage")

type command func(ctx context.Context, a *app.App, args []string, out io.Writer) error

var commands = map[string]command{
	"signup":  signUp,
	"signin":  signIn,
	"signout": signOut,
	"reset":   resetPassword,
	"verify":  verify,
	"whoami":  whoAmI,
	"watch":   watch,
	"profile": profile,
	"avatar":  avatar,
	"feed":    showFeed,
	"post":    createPost,
	"edit":    editPost,
	"delete":  deletePost,
	"like":    like,
	"unlike":  unlike,
}

func run(ctx context.Context, cfg *config.ClientConfig, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usageText)
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(out, usageText)
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Start(ctx); err != nil {
		return err
	}
	return cmd(ctx, a, args[1:], out)
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func signUp(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlags("signup")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	confirm := fs.String("confirm", "", "password again")
	username := fs.String("username", "", "username")
	if err := fs.Parse(args); err != nil {
		return err
	}

	name, err := validation.SignUp(*email, *password, *confirm, *username)
	if err != nil {
		return err
	}
	res, err := a.Session.SignUp(ctx, strings.TrimSpace(*email), *password, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Account created for %s.\n%s\n", res.User.Email, res.Message)
	return nil
}

func signIn(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlags("signin")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validation.Credentials(*email, *password); err != nil {
		return err
	}

	identity, err := a.Session.SignIn(ctx, strings.TrimSpace(*email), *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Signed in as %s.\n", identity.Email)
	if p := a.Session.Profile(); p != nil {
		fmt.Fprintf(out, "Username: %s\n", p.Username)
	}
	return nil
}

func signOut(ctx context.Context, a *app.App, _ []string, out io.Writer) error {
	if a.Session.Identity() == nil {
		fmt.Fprintln(out, "Not signed in.")
		return nil
	}
	err := a.Session.SignOut(ctx)
	fmt.Fprintln(out, "Signed out.")
	return err
}

func resetPassword(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlags("reset")
	email := fs.String("email", "", "email address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validation.Email(*email); err != nil {
		return err
	}
	if err := a.Session.ResetPassword(ctx, strings.TrimSpace(*email)); err != nil {
		return err
	}
	fmt.Fprintln(out, "If the address has an account, a reset link is on its way.")
	return nil
}

func verify(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlags("verify")
	typ := fs.String("type", "signup", "signup or recovery")
	token := fs.String("token", "", "token from the emailed link")
	password := fs.String("password", "", "new password (recovery)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return fmt.Errorf("%w: -token is required", errUsage)
	}
	if *typ == "recovery" {
		if err := validation.Password(*password); err != nil {
			return err
		}
	}

	sess, err := a.Client.VerifyOTP(ctx, *typ, *token, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Verified. Signed in as %s.\n", sess.User.Email)
	return nil
}

func whoAmI(_ context.Context, a *app.App, _ []string, out io.Writer) error {
	identity := a.Session.Identity()
	if identity == nil {
		fmt.Fprintln(out, "Not signed in.")
		return nil
	}
	fmt.Fprintf(out, "id:       %s\nemail:    %s\n", identity.UserID, identity.Email)
	if p := a.Session.Profile(); p != nil {
		fmt.Fprintf(out, "username: %s\n", p.Username)
		if p.AvatarURL != nil {
			fmt.Fprintf(out, "avatar:   %s\n", *p.AvatarURL)
		}
	}
	return nil
}

func watch(ctx context.Context, a *app.App, _ []string, out io.Writer) error {
	done := make(chan struct{})
	var once sync.Once
	unsubscribe := a.Client.OnAuthStateChange(func(ev client.AuthEvent) {
		fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), ev.Event)
		if ev.Event == client.EventSignedOut {
			once.Do(func() { close(done) })
		}
	})
	defer unsubscribe()

	if err := a.Client.SubscribeRealtime(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Watching auth events. Ctrl-C to stop.")
	select {
	case <-ctx.Done():
	case <-done:
	}
	return nil
}

func profile(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 2 || args[0] != "set-username" {
		return fmt.Errorf("%w: profile set-username NAME", errUsage)
	}
	name, err := validation.Username(args[1])
	if err != nil {
		return err
	}
	p, err := a.Session.UpdateProfile(ctx, client.ProfileUpdate{Username: &name})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Username is now %s.\n", p.Username)
	return nil
}

func avatar(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	switch {
	case len(args) == 2 && args[0] == "set":
		image, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		p, err := a.Session.ChangeAvatar(ctx, image)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Avatar updated: %s\n", *p.AvatarURL)
		return nil
	case len(args) == 1 && args[0] == "remove":
		if _, err := a.Session.RemoveAvatar(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Avatar removed.")
		return nil
	}
	return fmt.Errorf("%w: avatar set FILE | avatar remove", errUsage)
}

func showFeed(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlags("feed")
	user := fs.String("user", "", "only posts by this user id")
	mine := fs.Bool("mine", false, "only your posts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	posts := a.Feed.Posts()
	switch {
	case *mine:
		identity := a.Session.Identity()
		if identity == nil {
			return feed.ErrNotAuthenticated
		}
		posts = a.Feed.PostsBy(identity.UserID)
	case *user != "":
		var err error
		if posts, err = a.Feed.FetchPostsBy(ctx, *user); err != nil {
			return err
		}
	}

	if len(posts) == 0 {
		fmt.Fprintln(out, "No posts yet.")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAUTHOR\tLIKES\tCAPTION\tPOSTED")
	for _, p := range posts {
		author := "?"
		if p.Author != nil {
			author = p.Author.Username
		}
		heart := " "
		if p.IsLikedByCurrentUser {
			heart = "♥"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s%d\t%s\t%s\n", p.ID, author, heart, p.LikeCount, p.Caption, p.CreatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func createPost(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlags("post")
	imagePath := fs.String("image", "", "JPEG file")
	caption := fs.String("caption", "", "caption")
	if err := fs.Parse(args); err != nil {
		return err
	}
	text, err := validation.Caption(*caption)
	if err != nil {
		return err
	}
	if *imagePath == "" {
		return fmt.Errorf("%w: -image is required", errUsage)
	}
	image, err := os.ReadFile(*imagePath)
	if err != nil {
		return err
	}

	url, err := a.Feed.UploadImage(ctx, image)
	if err != nil {
		return err
	}
	p, err := a.Feed.CreatePost(ctx, url, text)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Posted %s.\n", p.ID)
	return nil
}

func editPost(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: edit POST_ID CAPTION", errUsage)
	}
	text, err := validation.Caption(args[1])
	if err != nil {
		return err
	}
	p, err := a.Feed.UpdatePost(ctx, args[0], text)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Updated %s.\n", p.ID)
	return nil
}

func deletePost(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: delete POST_ID", errUsage)
	}
	if err := a.Feed.DeletePost(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %s.\n", args[0])
	return nil
}

func like(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	return toggleLike(ctx, args, out, "like", a.Feed.LikePost)
}

func unlike(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	return toggleLike(ctx, args, out, "unlike", a.Feed.UnlikePost)
}

func toggleLike(ctx context.Context, args []string, out io.Writer, verb string, fn func(context.Context, string) (*client.LikeResult, error)) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: %s POST_ID", errUsage, verb)
	}
	res, err := fn(ctx, args[0])
	if err != nil {
		return err
	}
	state := "not liked"
	if res.Liked {
		state = "liked"
	}
	if !res.Changed {
		fmt.Fprintf(out, "Already %s (%d likes).\n", state, res.LikeCount)
		return nil
	}
	fmt.Fprintf(out, "Now %s (%d likes).\n", state, res.LikeCount)
	return nil
}
