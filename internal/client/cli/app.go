// Package cli is an interactive terminal client for the trainingpay API.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/trainingpay/internal/client/api"
	"github.com/dmitrijs2005/trainingpay/internal/client/config"
	"github.com/dmitrijs2005/trainingpay/internal/common"
)

var errNotLoggedIn = errors.New("not logged in")

type App struct {
	api     *api.Client
	timeout time.Duration
	reader  *bufio.Reader
	out     io.Writer

	email string
	token string
}

func NewApp(c *config.Config, in io.Reader, out io.Writer) *App {
	return &App{
		api:     api.NewClient(c.ServerURL, &http.Client{Timeout: c.RequestTimeout}),
		timeout: c.RequestTimeout,
		reader:  bufio.NewReader(in),
		out:     out,
	}
}

// Run starts the REPL and returns when input ends or the user exits.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to trainingpay CLI (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, a.reader)
}

func (a *App) getStatus() string {
	if a.email == "" {
		return ""
	}
	return "(" + a.email + ")"
}

func (a *App) isLoggedIn() bool {
	return a.token != ""
}

func (a *App) Register(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return a.fail(err)
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return a.fail(err)
	}
	defer common.WipeByteArray(password)

	first, err := GetSimpleText(a.reader, "First name", a.out)
	if err != nil {
		return a.fail(err)
	}
	last, err := GetSimpleText(a.reader, "Last name", a.out)
	if err != nil {
		return a.fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	u, err := a.api.Register(ctx, api.Registration{
		Email:     email,
		Password:  string(password),
		FirstName: first,
		LastName:  last,
	})
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Registered %s (id %s)\n", u.Email, u.UniqueID)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return a.fail(err)
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return a.fail(err)
	}
	defer common.WipeByteArray(password)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	u, err := a.api.SignIn(ctx, email, string(password))
	if err != nil {
		return a.fail(err)
	}

	a.email, a.token = u.Email, u.Token
	if u.TokenExpiry != nil {
		fmt.Fprintf(a.out, "Login successful, token valid until %s\n", u.TokenExpiry.Local().Format(time.RFC1123))
	} else {
		fmt.Fprintln(a.out, "Login successful")
	}
	return nil
}

func (a *App) Profile(ctx context.Context) error {
	if !a.isLoggedIn() {
		return a.fail(errNotLoggedIn)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	u, err := a.api.GetUser(ctx, a.token)
	if err != nil {
		return a.fail(err)
	}
	printUser(a.out, u)
	return nil
}

func (a *App) Update(ctx context.Context) error {
	if !a.isLoggedIn() {
		return a.fail(errNotLoggedIn)
	}

	var ch api.ProfileChanges
	var err error
	fields := []struct {
		prompt string
		dst    **string
	}{
		{"First name", &ch.FirstName},
		{"Last name", &ch.LastName},
		{"Phone", &ch.Phone},
		{"Address", &ch.Address},
	}
	for _, f := range fields {
		if *f.dst, err = GetOptionalText(a.reader, f.prompt, a.out); err != nil {
			return a.fail(err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	u, err := a.api.UpdateUser(ctx, a.token, ch)
	if err != nil {
		return a.fail(err)
	}
	printUser(a.out, u)
	return nil
}

func (a *App) Pay(ctx context.Context) error {
	if !a.isLoggedIn() {
		return a.fail(errNotLoggedIn)
	}

	raw, err := GetSimpleText(a.reader, "Amount", a.out)
	if err != nil {
		return a.fail(err)
	}
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || amount <= 0 {
		return a.fail(fmt.Errorf("amount must be a positive whole number"))
	}
	mobile, err := GetSimpleText(a.reader, "Mobile number", a.out)
	if err != nil {
		return a.fail(err)
	}
	course, err := GetSimpleText(a.reader, "Course id (optional)", a.out)
	if err != nil {
		return a.fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	p, err := a.api.CreatePayment(ctx, a.token, amount, mobile, course)
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Payment %s created, continue at:\n%s\n", p.MerchantTransactionID, p.RedirectURL)
	return nil
}

func (a *App) History(ctx context.Context) error {
	if !a.isLoggedIn() {
		return a.fail(errNotLoggedIn)
	}

	search, err := GetSimpleText(a.reader, "Search (empty for all)", a.out)
	if err != nil {
		return a.fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	txs, err := a.api.ListPayments(ctx, a.token, search)
	if err != nil {
		return a.fail(err)
	}
	if len(txs) == 0 {
		fmt.Fprintln(a.out, "No payments")
		return nil
	}
	for _, tx := range txs {
		course := tx.CourseID
		if tx.Membership {
			course = "membership"
		}
		fmt.Fprintf(a.out, "%s  %s  %d  %s  %s\n",
			tx.TransactionDate.Local().Format(time.DateTime), tx.TransactionID, tx.Amount, tx.PaymentMode, course)
	}
	return nil
}

func (a *App) Delete(ctx context.Context) error {
	if !a.isLoggedIn() {
		return a.fail(errNotLoggedIn)
	}

	confirm, err := GetSimpleText(a.reader, "Type the account email to confirm deletion", a.out)
	if err != nil {
		return a.fail(err)
	}
	if confirm != a.email {
		fmt.Fprintln(a.out, "Deletion cancelled")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.api.DeleteUser(ctx, a.token, a.email); err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.out, "Account %s deleted\n", a.email)
	a.email, a.token = "", ""
	return nil
}

func (a *App) Logout(_ context.Context) error {
	a.email, a.token = "", ""
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

// fail reports err to the user and returns it. A rejected token ends the
// session so the next command asks for login again.
func (a *App) fail(err error) error {
	if errors.Is(err, api.ErrUnauthorized) && a.isLoggedIn() {
		a.email, a.token = "", ""
		fmt.Fprintln(a.out, "Session is no longer valid, please log in again")
	}
	fmt.Fprintf(a.out, "error: %v\n", err)
	return err
}

func printUser(w io.Writer, u *api.User) {
	fmt.Fprintf(w, "Email:   %s\n", u.Email)
	fmt.Fprintf(w, "ID:      %s\n", u.UniqueID)
	fmt.Fprintf(w, "Name:    %s %s\n", u.FirstName, u.LastName)
	fmt.Fprintf(w, "Phone:   %s\n", u.Phone)
	fmt.Fprintf(w, "Address: %s\n", u.Address)
	fmt.Fprintf(w, "Status:  %s\n", u.Status)
}
