// Package prestadores embeds the healthcare provider search pipeline in a Go
// program: a tabular corpus is indexed into SQLite or Redis, questions are
// planned into query variants, and the matching records are passed to a
// language model that writes the answer.
//
// The caller supplies the embedding and generation providers:
//
//	client, err := prestadores.New(ctx, "datasets/prestadores.xlsx",
//	    prestadores.WithSQLite("./index"),
//	    prestadores.WithEmbedder(emb),
//	    prestadores.WithGenerator(gen),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	fmt.Println(client.Search(ctx, "cardiólogos en Bogotá"))
//	fmt.Println(client.Search(ctx, map[string]any{"medical_specialty": "pediatría"}))
//
// Search never returns an error: failures come back as an answer starting
// with "Error en búsqueda: ". Ask returns the same answer with the records
// and query variants behind it.
package prestadores
