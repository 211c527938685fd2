package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/planejafacil/api/internal/bootstrap"
	"github.com/planejafacil/api/internal/config"
	"github.com/planejafacil/api/internal/identity"
	"github.com/planejafacil/api/internal/resource"
	"github.com/planejafacil/api/internal/template"
	"github.com/planejafacil/api/internal/tenant"
	"github.com/planejafacil/api/internal/util"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("configuração inválida")
	}

	ctx := context.Background()

	deps, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar às dependências")
	}
	defer deps.Close()

	cmd := os.Args[1]
	args := os.Args[2:]

	if err := dispatch(ctx, deps, cmd, args); err != nil {
		if errors.Is(err, errUsage) {
			usage()
			os.Exit(1)
		}
		deps.Close()
		log.Fatal().Err(err).Str("cmd", cmd).Msg("comando falhou")
	}
}

var errUsage = errors.New("uso inválido")

func dispatch(ctx context.Context, deps *bootstrap.Deps, cmd string, args []string) error {
	switch cmd {
	case "purge":
		return runPurge(ctx, deps, args)
	case "seed-types":
		return runSeedTypes(ctx, deps, args)
	case "collections":
		return runCollections(ctx, deps, args)
	case "set-password":
		return runSetPassword(ctx, deps, args)
	default:
		return errUsage
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "tenant CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  tenant purge -uid <mainUid> -yes")
	fmt.Fprintln(os.Stderr, "  tenant seed-types -uid <mainUid>")
	fmt.Fprintln(os.Stderr, "  tenant collections -uid <mainUid>")
	fmt.Fprintln(os.Stderr, "  tenant set-password -uid <uid> -password <nova senha>")
}

func parseUID(name string, args []string, extra func(fs *flag.FlagSet)) (string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	uid := fs.String("uid", "", "uid do usuário principal")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if strings.TrimSpace(*uid) == "" {
		return "", errors.New("-uid é obrigatório")
	}
	return strings.TrimSpace(*uid), nil
}

func runPurge(ctx context.Context, deps *bootstrap.Deps, args []string) error {
	var confirm bool
	uid, err := parseUID("purge", args, func(fs *flag.FlagSet) {
		fs.BoolVar(&confirm, "yes", false, "confirma a remoção definitiva")
	})
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("remoção definitiva exige -yes")
	}

	report, err := tenant.NewPurger(deps.Store, deps.Provider).PurgeTenant(ctx, uid)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runSeedTypes(ctx context.Context, deps *bootstrap.Deps, args []string) error {
	uid, err := parseUID("seed-types", args, nil)
	if err != nil {
		return err
	}
	if _, err := deps.Store.Get(ctx, tenant.UserPath(uid)); err != nil {
		return fmt.Errorf("usuário principal %s: %w", uid, err)
	}

	templates := template.NewService(template.NewRepository(deps.Store))
	resources := resource.NewService(resource.NewRepository(deps.Store), deps.Store, templates)
	created, err := resources.SeedDefaults(ctx, uid)
	if err != nil {
		return err
	}
	log.Info().Str("mainUserId", uid).Int("created", created).Msg("tipos padrão verificados")
	return printJSON(map[string]int{"created": created})
}

func runCollections(ctx context.Context, deps *bootstrap.Deps, args []string) error {
	uid, err := parseUID("collections", args, nil)
	if err != nil {
		return err
	}

	counts, err := tenant.NewPurger(deps.Store, deps.Provider).Inventory(ctx, tenant.UserPath(uid))
	if err != nil {
		return err
	}
	if len(counts) == 0 {
		fmt.Println("nenhuma coleção encontrada")
		return nil
	}
	return printJSON(counts)
}

func runSetPassword(ctx context.Context, deps *bootstrap.Deps, args []string) error {
	var password string
	uid, err := parseUID("set-password", args, func(fs *flag.FlagSet) {
		fs.StringVar(&password, "password", "", "nova senha")
	})
	if err != nil {
		return err
	}
	if err := util.ValidatePassword(password); err != nil {
		return err
	}

	if err := deps.Provider.UpdateUser(ctx, uid, identity.UserUpdate{Password: &password}); err != nil {
		return err
	}
	if err := deps.Provider.RevokeRefreshTokens(ctx, uid); err != nil {
		log.Warn().Err(err).Str("uid", uid).Msg("falha ao revogar refresh tokens")
	}
	log.Info().Str("uid", uid).Msg("senha redefinida")
	return nil
}

func printJSON(v any) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}
