package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type AuthModule struct {
	db        *pgxpool.Pool
	JWTSecret string
}

func NewAuthModule(db *pgxpool.Pool, JWTSecret string) *AuthModule {
	return &AuthModule{
		db:        db,
		JWTSecret: JWTSecret,
	}
}

func (a *AuthModule) createUser(ctx context.Context, username, password string) (string, error) {
	var exists bool
	err := a.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username).Scan(&exists)
	if err != nil {
		return "", err
	}
	if exists {
		return "", errors.New("username already exists")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	var userID string
	err = a.db.QueryRow(ctx,
		"INSERT INTO users (username, password, create_time) VALUES ($1, $2, NOW()) RETURNING id",
		username, string(hashedPassword),
	).Scan(&userID)
	if err != nil {
		return "", err
	}

	return userID, nil
}

func (a *AuthModule) generateJWT(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

func (a *AuthModule) authenticateUser(ctx context.Context, username string, password string) (string, error) {
	var userID string
	var passwordHash string
	err := a.db.QueryRow(ctx, "SELECT id, password FROM users WHERE username = $1", username).Scan(&userID, &passwordHash)
	if err != nil {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	return userID, nil
}

func (a *AuthModule) RegisterWithJWT(ctx context.Context, username string, password string) (string, error) {
	userID, err := a.createUser(ctx, username, password)
	if err != nil {
		return "", err
	}

	return a.generateJWT(userID)
}

func (a *AuthModule) LoginWithJWT(ctx context.Context, username, password string) (string, error) {
	userID, err := a.authenticateUser(ctx, username, password)
	if err != nil {
		return "", err
	}

	return a.generateJWT(userID)
}

func (a *AuthModule) ValidateTokenJWT(ctx context.Context, token string) (string, error) {
	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(a.JWTSecret), nil
	})
	if err != nil {
		return "", err
	}

	if claims, ok := parsedToken.Claims.(jwt.MapClaims); ok && parsedToken.Valid {
		userID, ok := claims["user_id"].(string)
		if !ok {
			return "", errors.New("invalid user_id in token")
		}
		return userID, nil
	}

	return "", errors.New("invalid token")
}

// ChangePassword changes the user's password after verifying the old password
func (a *AuthModule) ChangePassword(ctx context.Context, userID string, oldPassword, newPassword string) error {
	var passwordHash string
	err := a.db.QueryRow(ctx, "SELECT password FROM users WHERE id = $1", userID).Scan(&passwordHash)
	if err != nil {
		return errors.New("user not found")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(oldPassword)); err != nil {
		return errors.New("invalid old password")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = a.db.Exec(ctx, "UPDATE users SET password = $1 WHERE id = $2", string(hashedPassword), userID)
	return err
}
