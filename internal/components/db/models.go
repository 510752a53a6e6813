package db

type Individual struct {
	Jurisdiction string
	Name         string
	Firm         string
	Terms        string
	Contact      string
	Categories   string
}

type Var struct {
	Name  string
	Value string
}
