package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"moviehub/internal/events"
	"moviehub/internal/grpcserver"
)

const defaultBaseURL = "http://localhost:8080"

func main() {
	global := flag.NewFlagSet("moviehub", flag.ExitOnError)
	baseURL := global.String("api", defaultBaseURL, "API base URL")
	tokenPath := global.String("token", defaultTokenPath(), "token file path")
	if err := global.Parse(os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd := args[0]
	sub := ""
	rest := []string{}
	if len(args) > 1 {
		sub = args[1]
		rest = args[2:]
	}

	client := &http.Client{Timeout: 15 * time.Minute}

	switch cmd {
	case "auth":
		handleAuth(ctx, client, *baseURL, *tokenPath, sub, rest)
	case "movies":
		handleMovies(ctx, client, *baseURL, sub, rest)
	case "genres":
		printJSON(mustGet(ctx, client, *baseURL+"/genres"))
	case "ingest":
		handleIngest(ctx, client, *baseURL, *tokenPath, sub, rest)
	case "events":
		handleEvents(*baseURL, sub, rest)
	default:
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	switch sub {
	case "login":
		fs := flag.NewFlagSet("auth login", flag.ExitOnError)
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *email == "" || *password == "" {
			log.Fatal("email and password are required")
		}
		payload := map[string]string{"email": *email, "password": *password}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/login", "", payload, &resp); err != nil {
			log.Fatalf("login failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("logged in")
	case "register":
		fs := flag.NewFlagSet("auth register", flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)

		if *username == "" || *email == "" || *password == "" {
			log.Fatal("username, email, and password are required")
		}
		payload := map[string]string{"username": *username, "email": *email, "password": *password}
		var resp authResponse
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/auth/register", "", payload, &resp); err != nil {
			log.Fatalf("register failed: %v", err)
		}
		if err := saveToken(tokenPath, resp.Token); err != nil {
			log.Fatalf("save token: %v", err)
		}
		fmt.Println("registered and logged in")
	case "logout":
		if token, err := readToken(tokenPath); err == nil && token != "" {
			_ = doJSON(ctx, client, http.MethodPost, baseURL+"/auth/logout", token, nil, nil)
		}
		if err := clearToken(tokenPath); err != nil {
			log.Fatalf("logout failed: %v", err)
		}
		fmt.Println("logged out")
	default:
		log.Fatal("usage: moviehub auth <login|register|logout>")
	}
}

func handleMovies(ctx context.Context, client *http.Client, baseURL, sub string, args []string) {
	switch sub {
	case "search":
		fs := flag.NewFlagSet("movies search", flag.ExitOnError)
		query := fs.String("q", "", "title search")
		genre := fs.String("genre", "", "genre name")
		year := fs.Int("year", 0, "release year")
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "offset")
		_ = fs.Parse(args)

		u, err := url.Parse(baseURL + "/movies")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		qv := u.Query()
		if *query != "" {
			qv.Set("q", *query)
		}
		if *genre != "" {
			qv.Set("genre", *genre)
		}
		if *year > 0 {
			qv.Set("year", strconv.Itoa(*year))
		}
		qv.Set("limit", strconv.Itoa(*limit))
		qv.Set("offset", strconv.Itoa(*offset))
		u.RawQuery = qv.Encode()
		printJSON(mustGet(ctx, client, u.String()))
	case "show":
		fs := flag.NewFlagSet("movies show", flag.ExitOnError)
		id := fs.Int64("id", 0, "movie id")
		_ = fs.Parse(args)
		if *id <= 0 {
			log.Fatal("movie id is required")
		}
		printJSON(mustGet(ctx, client, baseURL+"/movies/"+strconv.FormatInt(*id, 10)))
	default:
		log.Fatal("usage: moviehub movies <search|show>")
	}
}

func handleIngest(ctx context.Context, client *http.Client, baseURL, tokenPath, sub string, args []string) {
	fs := flag.NewFlagSet("ingest "+sub, flag.ExitOnError)
	grpcAddr := fs.String("grpc", "", "use the admin gRPC service at this address instead of HTTP")
	_ = fs.Parse(args)

	if *grpcAddr != "" {
		runAdminRPC(ctx, *grpcAddr, sub)
		return
	}

	switch sub {
	case "run":
		var out map[string]any
		if err := doJSON(ctx, client, http.MethodPost, baseURL+"/ingest/run", mustToken(tokenPath), nil, &out); err != nil {
			log.Fatalf("trigger failed: %v", err)
		}
		printJSON(out)
	case "status":
		printJSON(mustGet(ctx, client, baseURL+"/ingest/status"))
	default:
		log.Fatal("usage: moviehub ingest <run|status> [-grpc addr]")
	}
}

func runAdminRPC(ctx context.Context, addr, sub string) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("grpc dial %s: %v", addr, err)
	}
	defer conn.Close()
	admin := grpcserver.NewClient(conn)

	ctx, cancel := context.WithTimeout(ctx, 15*time.Minute)
	defer cancel()

	var out *structpb.Struct
	switch sub {
	case "run":
		out, err = admin.TriggerCycle(ctx)
	case "status":
		out, err = admin.LastCycle(ctx)
	default:
		log.Fatal("usage: moviehub ingest <run|status> -grpc addr")
	}
	if err != nil {
		log.Fatalf("%s failed: %v", sub, err)
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(out)
	if err != nil {
		log.Fatalf("encode: %v", err)
	}
	fmt.Println(string(b))
}

func handleEvents(baseURL, sub string, args []string) {
	switch sub {
	case "tcp":
		fs := flag.NewFlagSet("events tcp", flag.ExitOnError)
		addr := fs.String("addr", "127.0.0.1:7070", "events TCP address")
		pretty := fs.Bool("pretty", true, "pretty print JSON events")
		_ = fs.Parse(args)
		for {
			if err := tailTCP(*addr, *pretty); err != nil {
				log.Printf("[events] disconnected: %v", err)
			}
			time.Sleep(1 * time.Second)
		}
	case "ws":
		wsURL, err := websocketURL(baseURL, "/ws")
		if err != nil {
			log.Fatalf("invalid base url: %v", err)
		}
		for {
			if err := tailWebSocket(wsURL); err != nil {
				log.Printf("[events] disconnected: %v", err)
			}
			time.Sleep(1 * time.Second)
		}
	case "udp":
		fs := flag.NewFlagSet("events udp", flag.ExitOnError)
		addr := fs.String("addr", "127.0.0.1:7071", "events UDP address")
		name := fs.String("name", "", "subscriber name (default: hostname)")
		_ = fs.Parse(args)
		if *name == "" {
			host, _ := os.Hostname()
			*name = "cli-" + host
		}
		if err := tailUDP(*addr, *name); err != nil {
			log.Fatalf("[events] %v", err)
		}
	default:
		log.Fatal("usage: moviehub events <tcp|ws|udp>")
	}
}

// tailUDP subscribes and prints datagrams; it never sees events sent while it was
// not subscribed.
func tailUDP(addr, name string) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	sub, _ := json.Marshal(events.SubscribeMessage{Type: events.SubscribeMessageType, Name: name})
	if _, err := conn.Write(sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	log.Printf("[events] subscribed to %s as %s", addr, name)

	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return err
		}
		printLine(buf[:n], true)
	}
}

func tailTCP(addr string, pretty bool) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	log.Printf("[events] connected to %s", addr)
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		printLine(sc.Bytes(), pretty)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

func tailWebSocket(wsURL string) error {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Printf("[events] connected to %s", wsURL)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		printLine(msg, true)
	}
}

func printLine(line []byte, pretty bool) {
	if !pretty {
		fmt.Println(string(line))
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		fmt.Println(string(line))
		return
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Println(string(b))
}

func printUsage() {
	fmt.Println("moviehub [-api url] [-token path] <command> [subcommand] [flags]")
	fmt.Println("commands:")
	fmt.Println("  auth login|register|logout")
	fmt.Println("  movies search|show")
	fmt.Println("  genres")
	fmt.Println("  ingest run|status [-grpc addr]")
	fmt.Println("  events tcp|ws|udp")
}
