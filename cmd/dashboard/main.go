package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"emall/internal/config"
	"emall/internal/dashboard/api"
	"emall/internal/dashboard/columns"
	"emall/internal/dashboard/detail"
	"emall/internal/dashboard/listing"
	"emall/internal/dashboard/modalstack"
	"emall/internal/dashboard/notify"
	"emall/internal/dashboard/progress"
	"emall/internal/dashboard/selection"
	"emall/internal/format"
	"emall/internal/logger"
	"emall/models"

	"go.uber.org/zap"
)

const usage = `usage: dashboard <command> [flags]

commands:
  list            show a page of procurements
  export          write the current page to an .xlsx file
  detail ID       show a procurement card
  select ID       mark a procurement as selected (-off to unmark)
  select-all      toggle every row on the page (-off to unmark)
  progress ID     show the progress of a selected procurement
  remark ID       append a remark (-content, -author)
  add-supplier ID add a supplier (-name, -contact, -item name:price:qty ...)
  delete-supplier ID SUPPLIER_ID
`

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()
	format.Location = cfg.Location

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// app связывает контроллеры панели над одним клиентом и общим стеком окон.
type app struct {
	client   *api.Client
	table    *listing.Controller
	selector *selection.Controller
	detail   *detail.Controller
	progress *progress.Controller
	stdout   io.Writer
}

func newApp(cfg *config.Config, log *zap.Logger, stdout, stderr io.Writer) (*app, error) {
	opts := []api.Option{
		api.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		api.WithUsername(cfg.Username),
		api.WithLogger(log.Named("api")),
	}
	if cfg.CSRFToken != "" {
		opts = append(opts, api.WithCSRFToken(cfg.CSRFToken))
	}
	client, err := api.New(cfg.BackendURL, opts...)
	if err != nil {
		return nil, err
	}

	toast := notify.Multi(notify.Logger(log.Named("notify")), notify.Func(func(level notify.Level, msg string) {
		fmt.Fprintf(stderr, "[%s] %s\n", level, msg)
	}))
	stack := modalstack.New()

	table := listing.New(client, listing.WithNotifier(toast), listing.WithLogger(log.Named("listing")))
	a := &app{
		client:   client,
		table:    table,
		selector: selection.New(client, table, toast, log.Named("selection")),
		detail:   detail.New(client, stack, toast, log.Named("detail")),
		progress: progress.New(client,
			progress.WithNotifier(toast),
			progress.WithLogger(log.Named("progress")),
			progress.WithStack(stack),
		),
		stdout: stdout,
	}
	return a, nil
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return flag.ErrHelp
	}
	a, err := newApp(cfg, log, stdout, stderr)
	if err != nil {
		return err
	}

	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)

	switch cmd {
	case "list", "export", "select-all":
		lf := listFlags(fs)
		out := fs.String("out", "procurements.xlsx", "export file")
		off := fs.Bool("off", false, "unselect instead of select")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := lf.apply(a.table); err != nil {
			return err
		}
		if _, err := a.table.Load(ctx); err != nil {
			return err
		}
		switch cmd {
		case "export":
			return a.export(*out)
		case "select-all":
			for _, r := range a.selector.SelectAll(ctx, !*off) {
				if r.Err != nil {
					fmt.Fprintf(stdout, "%d\tfailed: %v\n", r.ID, r.Err)
				}
			}
		}
		a.printPage()
		return nil

	case "detail":
		id, err := idArg(fs, args)
		if err != nil {
			return err
		}
		v, err := a.detail.Open(ctx, id)
		a.printDetail(v)
		return err

	case "select":
		off := fs.Bool("off", false, "unselect instead of select")
		id, err := idArg(fs, args)
		if err != nil {
			return err
		}
		if _, err := a.table.Load(ctx); err != nil {
			return err
		}
		if _, ok := a.table.Row(id); !ok {
			// строки нет на первой странице: переключаем напрямую
			env, err := a.client.SetSelection(ctx, id, !*off)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "%d\tselected=%t\towner=%s\n", id, env.IsSelected != nil && *env.IsSelected, env.ProjectOwner)
			return nil
		}
		confirmed, err := a.selector.Toggle(ctx, id, !*off)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%d\tselected=%t\n", id, confirmed)
		return nil

	case "progress":
		page := fs.Int("page", 1, "supplier page")
		id, err := idArg(fs, args)
		if err != nil {
			return err
		}
		return a.showProgress(ctx, id, *page)

	case "remark":
		content := fs.String("content", "", "remark text")
		author := fs.String("author", cfg.Username, "remark author")
		id, err := idArg(fs, args)
		if err != nil {
			return err
		}
		if err := a.progress.Open(ctx, id); err != nil {
			return err
		}
		return a.progress.AddRemark(ctx, *content, *author)

	case "add-supplier":
		var in models.SupplierInput
		fs.StringVar(&in.Name, "name", "", "supplier name")
		fs.StringVar(&in.Contact, "contact", "", "phone or email")
		fs.StringVar(&in.Source, "source", "", "where the supplier was found")
		fs.StringVar(&in.StoreName, "store", "", "store name")
		fs.BoolVar(&in.IsSelected, "selected", false, "mark as the chosen supplier")
		fs.Func("item", "commodity as name:price:quantity, repeatable", func(s string) error {
			c, err := parseItem(s)
			if err == nil {
				in.Commodities = append(in.Commodities, c)
			}
			return err
		})
		id, err := idArg(fs, args)
		if err != nil {
			return err
		}
		if err := a.progress.Open(ctx, id); err != nil {
			return err
		}
		if err := a.progress.AddSupplier(ctx, in); err != nil {
			return err
		}
		a.printProgress(a.progress.View())
		return nil

	case "delete-supplier":
		yes := fs.Bool("yes", false, "skip confirmation")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if fs.NArg() != 2 {
			return fmt.Errorf("%s: expected ID SUPPLIER_ID", cmd)
		}
		id, err1 := strconv.Atoi(fs.Arg(0))
		supplierID, err2 := strconv.Atoi(fs.Arg(1))
		if err := errors.Join(err1, err2); err != nil {
			return fmt.Errorf("%s: %w", cmd, err)
		}
		if err := a.progress.Open(ctx, id); err != nil {
			return err
		}
		confirm := progress.ConfirmFunc(func(context.Context, string) bool { return *yes })
		return a.progress.DeleteSupplier(ctx, supplierID, confirm)

	default:
		fmt.Fprint(stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

type tableFlags struct {
	start, size int
	search      string
	order       string
	selected    bool
	budget      string
	filters     map[string]*string
}

func listFlags(fs *flag.FlagSet) *tableFlags {
	lf := &tableFlags{filters: map[string]*string{}}
	fs.IntVar(&lf.start, "start", 0, "first row offset")
	fs.IntVar(&lf.size, "size", listing.DefaultPageSize, "page size")
	fs.StringVar(&lf.search, "search", "", "global search")
	fs.StringVar(&lf.order, "order", "-publish_date", "comma separated fields, '-' for descending")
	fs.BoolVar(&lf.selected, "selected", false, "only selected procurements")
	fs.StringVar(&lf.budget, "budget", "", "budget search: '>=12万元', '<5000', '=3500' or '1000..50000'")
	for _, key := range models.FilterKeys {
		lf.filters[key] = fs.String(key, "", "filter by "+key)
	}
	return lf
}

func (lf *tableFlags) apply(t *listing.Controller) error {
	for key, val := range lf.filters {
		if err := t.SetFilter(key, *val); err != nil {
			return err
		}
	}
	t.SetSearch(lf.search)
	t.SetShowSelectedOnly(lf.selected)
	if lf.budget != "" {
		ps, err := parseBudget(lf.budget)
		if err != nil {
			return err
		}
		if err := t.SetPriceSearch(ps); err != nil {
			return err
		}
	}

	orders, err := parseOrder(t.Columns(), lf.order)
	if err != nil {
		return err
	}
	t.SetOrder(orders...)
	t.SetPage(lf.start, lf.size)
	return nil
}

// parseBudget разбирает ">=12万元" или "1000..50000". Суммы понимаются как в колонке бюджета.
func parseBudget(s string) (*models.PriceSearch, error) {
	s = strings.TrimSpace(s)
	amount := func(v string) (float64, error) {
		n, ok := format.ParsePrice(strings.TrimSpace(v))
		if !ok {
			return 0, fmt.Errorf("invalid budget amount %q", v)
		}
		return n, nil
	}

	if lo, hi, ok := strings.Cut(s, ".."); ok {
		from, err := amount(lo)
		if err != nil {
			return nil, err
		}
		to, err := amount(hi)
		if err != nil {
			return nil, err
		}
		return &models.PriceSearch{Operator: models.PriceRange, Min: from, Max: to}, nil
	}

	for _, op := range []models.PriceOperator{models.PriceGTE, models.PriceLTE, models.PriceGT, models.PriceLT, models.PriceEQ} {
		if rest, ok := strings.CutPrefix(s, string(op)); ok {
			v, err := amount(rest)
			if err != nil {
				return nil, err
			}
			return &models.PriceSearch{Operator: op, Value: v}, nil
		}
	}
	return nil, fmt.Errorf("invalid budget search %q", s)
}

// parseOrder переводит "-publish_date,project_title" в индексы колонок.
func parseOrder(cols []columns.Column, s string) ([]columns.Order, error) {
	var orders []columns.Order
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, desc := strings.CutPrefix(tok, "-")
		idx := -1
		for i, c := range cols {
			if c.Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("unknown order field %q", name)
		}
		orders = append(orders, columns.Order{Column: idx, Desc: desc})
	}
	return orders, nil
}

func parseItem(s string) (models.Commodity, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return models.Commodity{}, fmt.Errorf("item %q: want name:price:quantity", s)
	}
	price, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return models.Commodity{}, fmt.Errorf("item %q price: %w", s, err)
	}
	qty, err := strconv.Atoi(parts[2])
	if err != nil {
		return models.Commodity{}, fmt.Errorf("item %q quantity: %w", s, err)
	}
	return models.Commodity{Name: parts[0], Price: price, Quantity: qty}, nil
}

func idArg(fs *flag.FlagSet, args []string) (int, error) {
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if fs.NArg() != 1 {
		return 0, fmt.Errorf("%s: expected one ID argument", fs.Name())
	}
	return api.ParseID(fs.Arg(0))
}

func (a *app) export(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := a.table.Export(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "exported %d rows to %s\n", len(a.table.Page().Rows), path)
	return nil
}

func (a *app) showProgress(ctx context.Context, id, page int) error {
	if err := a.progress.Open(ctx, id); err != nil {
		return err
	}
	a.progress.SetPage(page)
	a.printProgress(a.progress.View())
	return nil
}

func (a *app) printPage() {
	page := a.table.Page()
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	cols := a.table.Columns()
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c.Title)
	}
	fmt.Fprintln(w)
	for _, r := range page.Rows {
		for i, cell := range r.Cells {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, cellText(i, r, cell))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "total %d, filtered %d, selected on page %d\n", page.Total, page.Filtered, a.table.SelectedCount())
}

func cellText(col int, r listing.Row, cell columns.Cell) string {
	switch col {
	case columns.ColSelect:
		mark := "[ ]"
		if cell.Checked {
			mark = "[x]"
		}
		return mark + " " + strconv.Itoa(r.Procurement.ID)
	case columns.ColQuoteEndTime:
		if r.Expired {
			return cell.Text + " (expired)"
		}
	case columns.ColActions:
		names := make([]string, 0, len(r.Actions))
		for _, act := range r.Actions {
			names = append(names, string(act))
		}
		return strings.Join(names, ",")
	}
	return cell.Text
}

func (a *app) printDetail(v detail.View) {
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if v.Status == detail.Failed {
		fmt.Fprintf(w, "%s: %s\n", v.ErrorTitle, v.ErrorMessage)
		return
	}
	fmt.Fprintln(w, v.Title)
	for _, f := range append(append([]detail.Field(nil), v.Basic...), v.Timeline...) {
		fmt.Fprintf(w, "%s\t%s\n", f.Label, f.Value)
	}
	if len(v.Items) > 0 {
		fmt.Fprintln(w, "#\t商品名称\t技术参数\t采购数量\t控制金额\t推荐品牌\t商务要求\t下载文件")
		for _, it := range v.Items {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				it.Index, it.Name, it.Parameters, it.Quantity, it.Amount, it.Brand, it.Business, it.DownloadURL)
		}
	}
	fmt.Fprintf(w, "查看原链接\t%s\n", v.SourceURL)
}

func (a *app) printProgress(v progress.View) {
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if v.Status == progress.LoadFailed {
		fmt.Fprintf(w, "%s: %s\n", v.ErrorTitle, v.ErrorMessage)
		return
	}
	o := v.Overview
	fmt.Fprintf(w, "%s\t%s\n", v.Title, v.Number)
	fmt.Fprintf(w, "竞标状态\t%s\n", v.Form.BiddingStatus.Label())
	fmt.Fprintf(w, "客户联系人\t%s\t%s\n", v.Form.ClientContact, v.Form.ClientPhone)
	fmt.Fprintf(w, "预算\t%s\t成本\t%s\n", format.Money(o.Budget), format.Money(o.Cost))
	fmt.Fprintf(w, "供应商\t%d\t已选\t%d\t备选\t%d\n", o.SupplierCount, o.SelectedCount, o.BackupCount)

	fmt.Fprintf(w, "\nID\t供应商\t报价\t利润\t利润率\t(%d/%d)\n", v.Page, v.Pages)
	for _, d := range v.Suppliers {
		mark := " "
		if d.IsSelected {
			mark = "*"
		}
		quote := d.Total()
		profit, rate := progress.Profit(quote, o.Cost, o.Budget)
		fmt.Fprintf(w, "%s%d\t%s\t%s\t%s\t%s\n", mark, d.ID, d.Name, format.Money(quote), format.Money(profit), format.Percent(rate))
	}
	if len(v.Remarks) > 0 {
		fmt.Fprintln(w, "\n备注")
		for _, r := range v.Remarks {
			fmt.Fprintf(w, "%s\t%s\t%s\n", format.FormatDate(r.CreatedAt), r.CreatedBy, r.RemarkContent)
		}
	}
}
