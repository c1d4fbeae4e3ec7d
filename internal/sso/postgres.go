package sso

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"smartsefaz.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store against the shared SSO database. Table and column
// names are the provider's (Portuguese) schema: this service is one consumer
// among several and does not own the tables.
type PGStore struct {
	db *sql.DB
}

// Open connects to PostgreSQL and applies pool defaults suited to the
// read-mostly entitlement workload.
func Open(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

// NewPGStore wraps an existing connection pool, owned by the caller.
func NewPGStore(db *sql.DB) *PGStore { return &PGStore{db: db} }

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

func (s *PGStore) Users(context.Context) UserStore         { return &userStore{db: s.db} }
func (s *PGStore) Grants(context.Context) GrantStore       { return &grantStore{db: s.db} }
func (s *PGStore) AccessLog(context.Context) AccessLogStore { return &accessLogStore{db: s.db} }

// User store ---------------------------------------------------------------
type userStore struct{ db *sql.DB }

func (s *userStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, nome, cpf, senha, ativo, cargo, departamento, foto_url
		 from sso_usuarios
		 where lower(email) = lower($1)`, email)

	var (
		u                         User
		cpf, cargo, dept, fotoURL sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &cpf, &u.PasswordHash, &u.Active, &cargo, &dept, &fotoURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.CPF = cpf.String
	u.JobTitle = cargo.String
	u.Department = dept.String
	u.PhotoURL = fotoURL.String
	return &u, nil
}

func (s *userStore) TouchLastAccess(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`update sso_usuarios set ultimo_acesso = now() where id = $1`, userID)
	return err
}

// Grant store --------------------------------------------------------------
type grantStore struct{ db *sql.DB }

func (s *grantStore) ApplicationGrant(ctx context.Context, userID, applicationID string) (*ApplicationGrant, error) {
	row := s.db.QueryRowContext(ctx,
		`select usuario_id, aplicacao_id, ativo, data_expiracao
		 from sso_usuario_aplicacao
		 where usuario_id = $1
		   and aplicacao_id = $2
		   and ativo = true
		   and (data_expiracao is null or data_expiracao >= now())`,
		userID, applicationID)

	var (
		g       ApplicationGrant
		expires sql.NullTime
	)
	if err := row.Scan(&g.UserID, &g.ApplicationID, &g.Active, &expires); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		g.ExpiresAt = &t
	}
	return &g, nil
}

func (s *grantStore) ModuleGrants(ctx context.Context, userID, moduleRoute, applicationID string) (*ModuleGrantSet, error) {
	var moduleID string
	err := s.db.QueryRowContext(ctx,
		`select id from sso_modulos
		 where rota = $1 and aplicacao_id = $2 and ativo = true`,
		moduleRoute, applicationID).Scan(&moduleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`select p.codigo
		 from sso_usuario_modulo um
		 join sso_permissoes p on p.id = um.permissao_id
		 where um.usuario_id = $1
		   and um.modulo_id = $2
		   and um.ativo = true
		   and (um.data_expiracao is null or um.data_expiracao >= now())`,
		userID, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := &ModuleGrantSet{ModuleID: moduleID}
	seen := make(map[Permission]struct{})
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		perm := Permission(code)
		if _, dup := seen[perm]; dup {
			continue
		}
		seen[perm] = struct{}{}
		set.Permissions = append(set.Permissions, perm)
	}
	return set, rows.Err()
}

func (s *grantStore) ModulesForUser(ctx context.Context, userID, applicationID string) ([]ModuleAccess, error) {
	rows, err := s.db.QueryContext(ctx,
		`select m.id, m.nome, m.rota, p.codigo
		 from sso_modulos m
		 left join sso_usuario_modulo um on um.modulo_id = m.id
		   and um.usuario_id = $1
		   and um.ativo = true
		   and (um.data_expiracao is null or um.data_expiracao >= now())
		 left join sso_permissoes p on p.id = um.permissao_id
		 where m.aplicacao_id = $2 and m.ativo = true
		 order by m.ordem, m.nome`,
		userID, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result []ModuleAccess
		index  = make(map[string]int)
	)
	for rows.Next() {
		var (
			id, name, route string
			code            sql.NullString
		)
		if err := rows.Scan(&id, &name, &route, &code); err != nil {
			return nil, err
		}
		i, ok := index[id]
		if !ok {
			result = append(result, ModuleAccess{ID: id, Name: name, Route: route, Permissions: []Permission{}})
			i = len(result) - 1
			index[id] = i
		}
		if code.Valid {
			result[i].Permissions = append(result[i].Permissions, Permission(code.String))
		}
	}
	return result, rows.Err()
}

// Access log store ----------------------------------------------------------
type accessLogStore struct{ db *sql.DB }

func (s *accessLogStore) Append(ctx context.Context, entry *AccessEntry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	var details any
	if entry.Details != nil {
		data, err := json.Marshal(entry.Details)
		if err != nil {
			return err
		}
		details = data
	}
	var moduleID any
	if entry.ModuleID != "" {
		moduleID = entry.ModuleID
	}
	_, err := s.db.ExecContext(ctx,
		`insert into sso_logs_acesso
		   (id, usuario_id, aplicacao_id, modulo_id, acao, ip, user_agent, sucesso, detalhes, criado_em)
		 values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		entry.ID, entry.UserID, entry.ApplicationID, moduleID, string(entry.Action),
		entry.IP, entry.UserAgent, entry.Success, details, entry.OccurredAt,
	)
	return err
}
